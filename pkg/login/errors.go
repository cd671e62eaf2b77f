package login

import (
	"errors"
	"fmt"

	"github.com/platinummonkey/multipass/pkg/sso"
)

var (
	// ErrInvalidCredentials never says whether the account, the password
	// or the login type was at fault
	ErrInvalidCredentials = errors.New("login: invalid credentials")

	// ErrAccountLocked is reported for locked logins with a valid password
	ErrAccountLocked = errors.New("login: account locked")

	// ErrAccountUnconfirmed is reported for unconfirmed logins with a valid
	// password
	ErrAccountUnconfirmed = errors.New("login: account not confirmed")

	// ErrRemoteCallbackRejected marks a provider callback that could not be
	// completed. The login form is shown without an error.
	ErrRemoteCallbackRejected = errors.New("login: remote callback rejected")
)

// RemoteProviderUnavailableError is returned when a provider cannot
// produce a login URL
type RemoteProviderUnavailableError struct {
	Provider string
	Err      error
}

func (e *RemoteProviderUnavailableError) Error() string {
	return fmt.Sprintf("ERROR: %s does not have a remote login URL", e.Provider)
}

// Unwrap returns the registry error, which wraps sso.ErrNoRemoteURL
func (e *RemoteProviderUnavailableError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return sso.ErrNoRemoteURL
}
