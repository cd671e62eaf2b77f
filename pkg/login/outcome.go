package login

import (
	"github.com/platinummonkey/multipass/pkg/identity"
	"github.com/platinummonkey/multipass/pkg/session"
	"github.com/platinummonkey/multipass/pkg/sso"
)

// Kind is what the incoming request asks for
type Kind int

const (
	// KindVisit is a plain page view, possibly a provider callback
	KindVisit Kind = iota
	// KindLocal is a username and password form submission
	KindLocal
	// KindRemoteStart is a click on a remote provider button
	KindRemoteStart
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRemoteStart:
		return "remote_start"
	default:
		return "visit"
	}
}

// Request is the dispatcher's view of one login request
type Request struct {
	sso.Request

	Kind       Kind
	Username   string
	Password   string
	RememberMe bool
	// Provider names the provider a KindRemoteStart request asks for
	Provider string
}

// State is the terminal state a request reached
type State int

const (
	StateShowForm State = iota
	StateAuthenticated
	StateInvalidCredentials
	StatePendingConfirmation
	StateLockedOut
	StateRemoteRedirectIssued
	StateRemoteProviderUnavailable
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateInvalidCredentials:
		return "invalid_credentials"
	case StatePendingConfirmation:
		return "pending_confirmation"
	case StateLockedOut:
		return "locked_out"
	case StateRemoteRedirectIssued:
		return "remote_redirect_issued"
	case StateRemoteProviderUnavailable:
		return "remote_provider_unavailable"
	default:
		return "show_form"
	}
}

// Outcome is the tagged result of Handle
type Outcome struct {
	State State

	// Username and Identity are set once the user is known
	Username string
	Identity identity.Identity
	// Remote is true when a provider vouched for the user
	Remote bool

	// RedirectURL is where the caller sends the browser: the multipass
	// redirect, the return URL, or the provider's login page
	RedirectURL string
	// Session is the session established for an authenticated user
	Session *session.Session

	// Message is the user-facing text for failure and pending states
	Message string
	// HelpURL is the account recovery link shown with invalid credentials
	HelpURL string
	// Err classifies failure states
	Err error
}

// Redirect reports whether the caller should redirect instead of
// rendering
func (o Outcome) Redirect() bool {
	return o.RedirectURL != ""
}
