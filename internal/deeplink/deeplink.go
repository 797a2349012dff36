// Package deeplink parses the zappedin:// URLs the desktop shell registers
// as its protocol handler. A deep link carries a JSON payload in its "data"
// query parameter identifying the account to activate.
package deeplink

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Scheme is the registered custom protocol.
const Scheme = "zappedin"

// Payload is the activation trigger delivered through a deep link.
type Payload struct {
	AccountID string `json:"id"`
	Action    string `json:"action,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Find returns the first deep-link URL among command-line arguments.
func Find(args []string) (string, bool) {
	for _, arg := range args {
		if strings.HasPrefix(arg, Scheme+"://") {
			return arg, true
		}
	}
	return "", false
}

// Parse decodes a deep-link URL into its payload. Shells differ in how many
// times they percent-encode the data parameter, so a second unescape pass is
// attempted before giving up.
func Parse(raw string) (*Payload, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid deep link: %w", err)
	}
	if u.Scheme != Scheme {
		return nil, fmt.Errorf("unexpected scheme %q", u.Scheme)
	}

	data := u.Query().Get("data")
	if data == "" {
		return nil, fmt.Errorf("deep link has no data parameter")
	}

	payload, err := decode(data)
	if err != nil {
		unescaped, unescapeErr := url.QueryUnescape(data)
		if unescapeErr != nil {
			return nil, err
		}
		payload, err = decode(unescaped)
		if err != nil {
			return nil, err
		}
	}

	if payload.AccountID == "" {
		return nil, fmt.Errorf("deep link payload has no account id")
	}
	return payload, nil
}

func decode(data string) (*Payload, error) {
	var payload Payload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse deep link data: %w", err)
	}
	return &payload, nil
}
