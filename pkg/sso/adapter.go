package sso

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrNoRemoteURL means a provider could not produce a login URL
	ErrNoRemoteURL = errors.New("sso: provider has no remote login url")

	// ErrNotCallback is returned when a request is not a provider callback
	ErrNotCallback = errors.New("sso: request is not a provider callback")

	// ErrInvalidState is returned for unknown, expired or reused state tokens
	ErrInvalidState = errors.New("sso: invalid or expired state")

	// ErrCallbackDenied is returned when the provider reports a failed handshake
	ErrCallbackDenied = errors.New("sso: provider denied the login")
)

// Adapter is the capability set every remote provider implements
type Adapter interface {
	// Name returns the stable provider identifier
	Name() string

	IsActive() bool
	RequiresRemoteRedirect() bool
	ImageURL() string

	// IsReturnCallback reports whether req is this provider completing
	// its external handshake
	IsReturnCallback(req Request) bool

	// CompleteAuthentication validates the callback and returns the local
	// username and the return URL captured when the flow began
	CompleteAuthentication(ctx context.Context, req Request) (username, returnURL string, err error)

	// BuildLoginURI returns the URL that starts the external flow
	BuildLoginURI(ctx context.Context, req Request) (*url.URL, error)
}

// Provisioner maps a remote user to a local login, creating it if needed
type Provisioner interface {
	ProvisionRemoteLogin(ctx context.Context, user *RemoteUser) (username string, err error)
}

// Describe returns the descriptor of a
func Describe(a Adapter) Descriptor {
	return Descriptor{
		Name:                   a.Name(),
		IsActive:               a.IsActive(),
		RequiresRemoteRedirect: a.RequiresRemoteRedirect(),
		ImageURL:               a.ImageURL(),
	}
}

// baseAdapter holds what the protocol adapters share: configuration,
// state tokens and provisioning
type baseAdapter struct {
	config      *ProviderConfig
	states      StateStore
	provisioner Provisioner
}

func (b *baseAdapter) Name() string                 { return b.config.Name }
func (b *baseAdapter) IsActive() bool               { return b.config.Enabled }
func (b *baseAdapter) RequiresRemoteRedirect() bool { return true }
func (b *baseAdapter) ImageURL() string             { return b.config.ImageURL }

// ownsState reports whether state was issued for this provider
func (b *baseAdapter) ownsState(state string) bool {
	return state != "" && strings.HasPrefix(state, statePrefix(b.config.Name))
}

func (b *baseAdapter) beginFlow(ctx context.Context, req Request) (string, error) {
	token := NewStateToken(b.config.Name)
	st := State{Provider: b.config.Name, ReturnURL: req.ReturnURL()}
	if err := b.states.Save(ctx, token, st); err != nil {
		return "", fmt.Errorf("failed to save state: %w", err)
	}
	return token, nil
}

func (b *baseAdapter) consumeState(ctx context.Context, token string) (State, error) {
	if !b.ownsState(token) {
		return State{}, ErrInvalidState
	}
	st, err := b.states.Consume(ctx, token)
	if err != nil {
		return State{}, err
	}
	if !strings.EqualFold(st.Provider, b.config.Name) {
		return State{}, ErrInvalidState
	}
	return st, nil
}

// finish turns a verified remote user into a local username
func (b *baseAdapter) finish(ctx context.Context, user *RemoteUser, st State) (string, string, error) {
	if user.ExternalID == "" {
		return "", "", fmt.Errorf("missing user id in %s response", b.config.Name)
	}
	user.ProviderName = b.config.Name

	if b.provisioner == nil {
		if user.Username == "" {
			return "", "", fmt.Errorf("missing username in %s response", b.config.Name)
		}
		return user.Username, st.ReturnURL, nil
	}

	username, err := b.provisioner.ProvisionRemoteLogin(ctx, user)
	if err != nil {
		return "", "", fmt.Errorf("failed to provision %s login: %w", b.config.Name, err)
	}
	return username, st.ReturnURL, nil
}
