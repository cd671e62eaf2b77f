package identity

import (
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// LoginTypeDatabase is the login type of locally stored passwords
const LoginTypeDatabase = "database"

// Mechanism is an authentication component that owns a login type
type Mechanism interface {
	// Name returns the login type this mechanism owns
	Name() string

	// IsActive reports whether the mechanism may be used at all
	IsActive() bool

	// RequiresRemoteRedirect reports whether logins of this type can only
	// authenticate through a remote provider
	RequiresRemoteRedirect() bool

	// Verify compares password against the stored login
	Verify(login *Login, password string) bool
}

// BcryptMechanism verifies database logins against bcrypt hashes
type BcryptMechanism struct {
	active bool
}

// NewBcryptMechanism creates the database login mechanism
func NewBcryptMechanism(active bool) *BcryptMechanism {
	return &BcryptMechanism{active: active}
}

func (m *BcryptMechanism) Name() string                 { return LoginTypeDatabase }
func (m *BcryptMechanism) IsActive() bool               { return m.active }
func (m *BcryptMechanism) RequiresRemoteRedirect() bool { return false }

// Verify compares password with the login's bcrypt hash
func (m *BcryptMechanism) Verify(login *Login, password string) bool {
	if login == nil || login.Password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(login.Password), []byte(password)) == nil
}

// HashPassword returns the bcrypt hash stored for database logins
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// RemoteMechanism represents logins created by a remote provider. They
// never pass a local password check.
type RemoteMechanism struct {
	name   string
	active bool
}

// NewRemoteMechanism creates the mechanism for a remote provider's logins
func NewRemoteMechanism(name string, active bool) *RemoteMechanism {
	return &RemoteMechanism{name: strings.ToLower(name), active: active}
}

func (m *RemoteMechanism) Name() string                 { return m.name }
func (m *RemoteMechanism) IsActive() bool               { return m.active }
func (m *RemoteMechanism) RequiresRemoteRedirect() bool { return true }
func (m *RemoteMechanism) Verify(*Login, string) bool   { return false }

// Mechanisms maps login types to their mechanism. Lookups are case
// insensitive.
type Mechanisms struct {
	mu    sync.RWMutex
	byKey map[string]Mechanism
}

// NewMechanisms creates a mechanism set
func NewMechanisms(mechanisms ...Mechanism) *Mechanisms {
	m := &Mechanisms{byKey: make(map[string]Mechanism)}
	for _, mech := range mechanisms {
		m.Register(mech)
	}
	return m
}

// Register adds or replaces a mechanism
func (m *Mechanisms) Register(mech Mechanism) {
	if mech == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byKey[strings.ToLower(mech.Name())] = mech
}

// Get returns the mechanism for loginType
func (m *Mechanisms) Get(loginType string) (Mechanism, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mech, ok := m.byKey[strings.ToLower(loginType)]
	return mech, ok
}
