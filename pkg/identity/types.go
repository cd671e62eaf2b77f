package identity

import (
	"strings"
	"time"
)

// AccountStatus is the outcome of a local credential check
type AccountStatus int

const (
	StatusInvalidCredentials AccountStatus = iota
	StatusAuthenticated
	StatusPendingConfirmation
	StatusLockedOut
)

func (s AccountStatus) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusPendingConfirmation:
		return "pending_confirmation"
	case StatusLockedOut:
		return "locked_out"
	default:
		return "invalid_credentials"
	}
}

// Identity is the resolved person record used downstream of a login.
// It is passed by value and never mutated after resolution.
type Identity struct {
	PersonID  int64  `json:"person_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	NickName  string `json:"nick_name,omitempty"`
}

// PreferredName returns the nickname, falling back to the first name
func (i Identity) PreferredName() string {
	if strings.TrimSpace(i.NickName) != "" {
		return i.NickName
	}
	return i.FirstName
}

// Person is the person row a login belongs to
type Person struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	NickName  string
}

// Login is a stored login record. Confirmed and LockedOut are nullable in
// storage; nil means confirmed and not locked.
type Login struct {
	ID          int64
	Username    string
	LoginType   string // name of the mechanism that owns this login
	Password    string // mechanism-specific secret (bcrypt hash for database logins)
	Confirmed   *bool
	LockedOut   *bool
	LastLoginAt *time.Time
	Person      Person
}

// IsConfirmed reports whether the login's email has been confirmed
func (l *Login) IsConfirmed() bool {
	return l.Confirmed == nil || *l.Confirmed
}

// IsLockedOut reports whether the login has been locked
func (l *Login) IsLockedOut() bool {
	return l.LockedOut != nil && *l.LockedOut
}

// Identity resolves the login's person into an Identity
func (l *Login) Identity() Identity {
	return Identity{
		PersonID:  l.Person.ID,
		Username:  l.Username,
		Email:     l.Person.Email,
		FirstName: l.Person.FirstName,
		LastName:  l.Person.LastName,
		NickName:  l.Person.NickName,
	}
}
