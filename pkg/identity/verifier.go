package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by a Store when no login matches
	ErrNotFound = errors.New("identity: login not found")

	// ErrDuplicateLogin is returned when a login name is already taken
	ErrDuplicateLogin = errors.New("identity: login already exists")
)

// Store is the identity store the verifier and dispatcher consume
type Store interface {
	// LookupLogin returns the login for username or ErrNotFound
	LookupLogin(ctx context.Context, username string) (*Login, error)

	// RecordLastLogin advances the last login time of username
	RecordLastLogin(ctx context.Context, username string, at time.Time) error
}

// Verifier checks local credentials and reports the account status
type Verifier struct {
	store      Store
	mechanisms *Mechanisms
}

// NewVerifier creates a credential verifier
func NewVerifier(store Store, mechanisms *Mechanisms) *Verifier {
	return &Verifier{store: store, mechanisms: mechanisms}
}

// Verify checks username and password. The identity is returned for the
// authenticated and pending confirmation states only. A lookup error is
// returned alongside StatusInvalidCredentials so the caller can log it.
// The status alone never tells a missing account from a wrong password.
func (v *Verifier) Verify(ctx context.Context, username, password string) (AccountStatus, Identity, error) {
	login, err := v.store.LookupLogin(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return StatusInvalidCredentials, Identity{}, nil
	}
	if err != nil {
		return StatusInvalidCredentials, Identity{}, err
	}
	if login == nil {
		return StatusInvalidCredentials, Identity{}, nil
	}

	mech, ok := v.mechanisms.Get(login.LoginType)
	if !ok || !mech.IsActive() || mech.RequiresRemoteRedirect() {
		return StatusInvalidCredentials, Identity{}, nil
	}
	if !mech.Verify(login, password) {
		return StatusInvalidCredentials, Identity{}, nil
	}

	switch {
	case login.IsLockedOut():
		return StatusLockedOut, Identity{}, nil
	case !login.IsConfirmed():
		return StatusPendingConfirmation, login.Identity(), nil
	default:
		return StatusAuthenticated, login.Identity(), nil
	}
}

// Resolve returns the identity of username without a password check. It
// is used once a remote provider has vouched for the user.
func (v *Verifier) Resolve(ctx context.Context, username string) (Identity, error) {
	login, err := v.store.LookupLogin(ctx, username)
	if err != nil {
		return Identity{}, err
	}
	if login == nil {
		return Identity{}, ErrNotFound
	}
	return login.Identity(), nil
}
