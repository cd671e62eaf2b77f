package multipass

import (
	"time"

	"github.com/platinummonkey/multipass/pkg/identity"
)

const (
	// TTL is how long a token stays valid at the receiving party
	TTL = 5 * time.Minute

	// ExpiresLayout formats expires with a literal Z suffix
	ExpiresLayout = "2006-01-02T15:04:05Z"
)

// Payload is the JSON document encrypted into the token. Field order
// matches the receiver's serializer.
type Payload struct {
	Email     string `json:"email"`
	Expires   string `json:"expires"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Nickname  string `json:"nickname"`
}

// NewPayload builds the payload for id issued at issuedAt
func NewPayload(id identity.Identity, issuedAt time.Time) Payload {
	return Payload{
		Email:     id.Email,
		Expires:   issuedAt.UTC().Add(TTL).Format(ExpiresLayout),
		FirstName: id.FirstName,
		LastName:  id.LastName,
		Nickname:  id.PreferredName(),
	}
}

// ExpiresAt parses the expires field
func (p Payload) ExpiresAt() (time.Time, error) {
	return time.Parse(ExpiresLayout, p.Expires)
}
