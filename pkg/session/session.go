// Package session establishes the authenticated session that follows a
// successful login.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned for unknown or expired sessions
var ErrNotFound = errors.New("session: not found")

const (
	// DefaultTTL is the lifetime of a browser session
	DefaultTTL = 12 * time.Hour
	// DefaultRememberTTL is the lifetime of a remembered session
	DefaultRememberTTL = 14 * 24 * time.Hour
)

// Session is an authenticated session keyed by username
type Session struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Persistent bool      `json:"persistent"`
}

// Store persists sessions
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// GenerateID returns a random 256-bit URL-safe session id
func GenerateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: failed to generate id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Manager creates sessions with the configured lifetimes
type Manager struct {
	store       Store
	ttl         time.Duration
	rememberTTL time.Duration
	now         func() time.Time
}

// NewManager creates a Manager. Zero durations use the defaults.
func NewManager(store Store, ttl, rememberTTL time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if rememberTTL <= 0 {
		rememberTTL = DefaultRememberTTL
	}
	return &Manager{store: store, ttl: ttl, rememberTTL: rememberTTL, now: time.Now}
}

// Establish creates and stores a session for username. A remembered
// session outlives the browser and uses the remember lifetime.
func (m *Manager) Establish(ctx context.Context, username string, remember bool) (*Session, error) {
	if username == "" {
		return nil, fmt.Errorf("session: username is required")
	}
	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	ttl := m.ttl
	if remember {
		ttl = m.rememberTTL
	}

	s := &Session{
		ID:         id,
		Username:   username,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		Persistent: remember,
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Lookup returns the live session for id
func (m *Manager) Lookup(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.ExpiresAt.After(m.now()) {
		return nil, ErrNotFound
	}
	return s, nil
}

// End deletes the session
func (m *Manager) End(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}
