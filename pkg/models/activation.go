package models

import "time"

// ActivationStatus represents the lifecycle state of one account activation.
type ActivationStatus string

const (
	StatusActivating ActivationStatus = "ACTIVATING"
	StatusActive     ActivationStatus = "ACTIVE"
	StatusFailed     ActivationStatus = "FAILED"
	StatusClosed     ActivationStatus = "CLOSED"
)

// Activation is the externally visible record of one provisioned browsing
// session.
type Activation struct {
	ID        string           `json:"id"`
	Username  string           `json:"username"`
	Status    ActivationStatus `json:"status"`
	StartedAt time.Time        `json:"startedAt"`
	Error     string           `json:"error,omitempty"`
}

// ActivateRequest is the payload delivered by the deep-link/IPC layer. Either
// a full account record is inlined or an account id to resolve via the
// remote lookup API.
type ActivateRequest struct {
	AccountID string   `json:"id,omitempty"`
	Account   *Account `json:"account,omitempty"`
}

// RotateProxyRequest asks a live activation to swap its upstream proxy.
type RotateProxyRequest struct {
	Proxy Proxy `json:"proxy"`
}
