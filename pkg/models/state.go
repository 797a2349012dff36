package models

import "encoding/json"

// Cookie is one cookie record inside a session state snapshot. The JSON shape
// matches the browser's storage-state format so snapshots round-trip without
// translation.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// LocalStorageEntry is one key/value pair of an origin's local storage.
type LocalStorageEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Origin groups the local storage captured for one origin.
type Origin struct {
	Origin       string              `json:"origin"`
	LocalStorage []LocalStorageEntry `json:"localStorage"`
}

// SessionState is the serialized authentication state of one account:
// cookies plus per-origin local storage. Re-applying a captured state to a
// fresh context reproduces the same authenticated view, modulo server-side
// expiry.
type SessionState struct {
	Cookies []Cookie `json:"cookies"`
	Origins []Origin `json:"origins"`
}

// EmptySessionState returns a state with no cookies and no origins, the
// default for accounts that have never logged in.
func EmptySessionState() *SessionState {
	return &SessionState{Cookies: []Cookie{}, Origins: []Origin{}}
}

// ParseSessionState decodes a serialized state blob. An empty or unparseable
// blob yields the empty state rather than an error: a stale or corrupted
// session file means "log in again", not "refuse to start".
func ParseSessionState(serialized string) *SessionState {
	if serialized == "" {
		return EmptySessionState()
	}

	var state SessionState
	if err := json.Unmarshal([]byte(serialized), &state); err != nil {
		return EmptySessionState()
	}
	if state.Cookies == nil {
		state.Cookies = []Cookie{}
	}
	if state.Origins == nil {
		state.Origins = []Origin{}
	}
	return &state
}

// IsEmpty reports whether the state carries no session data at all.
func (s *SessionState) IsEmpty() bool {
	return s == nil || (len(s.Cookies) == 0 && len(s.Origins) == 0)
}
