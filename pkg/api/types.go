package api

import (
	"time"

	"github.com/platinummonkey/multipass/pkg/login"
)

// LoginResponse is the JSON form of a login outcome
type LoginResponse struct {
	State       string      `json:"state"`
	Username    string      `json:"username,omitempty"`
	RedirectURL string      `json:"redirect_url,omitempty"`
	Message     string      `json:"message,omitempty"`
	HelpURL     string      `json:"help_url,omitempty"`
	Page        *login.Page `json:"page,omitempty"`
}

// LoginRequest is the body of POST /api/v1/login. The return URL travels
// in the returnurl query parameter, as it does for the form.
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// SessionResponse describes the caller's session
type SessionResponse struct {
	Username   string    `json:"username"`
	ExpiresAt  time.Time `json:"expires_at"`
	Persistent bool      `json:"persistent"`
}
