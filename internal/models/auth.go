package models

import "time"

// AuthState is everything persisted about a login: enough to restore the
// logged-in view, never an authorization decision.
type AuthState struct {
	Username      string    `json:"username"`
	Role          Role      `json:"role"`
	Authenticated bool      `json:"authenticated"`
	UpdatedAt     time.Time `json:"updated_at"`
}
