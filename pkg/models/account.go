package models

import "fmt"

// Proxy describes an upstream HTTP(S) proxy an account's traffic is routed
// through. It is a value type; instances are never mutated after construction.
type Proxy struct {
	ID       int    `json:"id,omitempty"`
	Host     string `json:"host_name"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Country  string `json:"country,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	Locale   string `json:"locale,omitempty"`
}

// ServerURL returns the proxy server address in the form the browser expects.
func (p Proxy) ServerURL() string {
	return fmt.Sprintf("http://%s:%d", p.Host, p.Port)
}

// Validate checks the fields required to bind a browsing context to the proxy.
func (p Proxy) Validate() error {
	if p.Host == "" {
		return fmt.Errorf("proxy host is required")
	}
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("proxy port %d out of range", p.Port)
	}
	return nil
}

// EmailAccount carries the mailbox used as the login identifier.
type EmailAccount struct {
	Email string `json:"email"`
}

// Account is the activation record for one LinkedIn account: everything the
// orchestrator needs to stand up a browsing session. Immutable for the
// lifetime of one activation.
type Account struct {
	Username     string        `json:"username"`
	Password     string        `json:"password,omitempty"`
	EmailAccount *EmailAccount `json:"email_account,omitempty"`
	Proxy        Proxy         `json:"proxy"`
	// State is the serialized session state from a previous run. May be
	// absent or unparseable; both degrade to a fresh login flow.
	State string `json:"state,omitempty"`
}

// Validate checks the fields that must be present before any browser
// resource is allocated.
func (a Account) Validate() error {
	if a.Username == "" {
		return fmt.Errorf("username is required")
	}
	if err := a.Proxy.Validate(); err != nil {
		return err
	}
	return nil
}

// LoginEmail returns the identifier entered into the login form, falling back
// to the username when no email account is attached.
func (a Account) LoginEmail() string {
	if a.EmailAccount != nil && a.EmailAccount.Email != "" {
		return a.EmailAccount.Email
	}
	return a.Username
}

// ProfileURL is the canonical resource an activated session lands on.
func (a Account) ProfileURL() string {
	return fmt.Sprintf("https://www.linkedin.com/in/%s", a.Username)
}
