package domain

import "time"

type SessionTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type ConnectivityRequest struct {
	Online *bool `json:"online" validate:"required"`
}

// SessionStatus is what the UI sees of the remote session.
type SessionStatus struct {
	Online        bool       `json:"online"`
	Authenticated bool       `json:"authenticated"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	AuthError     string     `json:"auth_error,omitempty"`
}
