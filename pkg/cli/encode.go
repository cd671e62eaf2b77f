package cli

import (
	"fmt"
	"time"

	"github.com/platinummonkey/multipass/pkg/identity"
	"github.com/platinummonkey/multipass/pkg/multipass"
)

func newEncodeCommand() *Command {
	return &Command{
		Name:        "encode",
		Description: "Encode a multipass token for a person",
		Run:         runEncode,
	}
}

// encodeResult is printed by encode
type encodeResult struct {
	Token     string `json:"token"`
	Signature string `json:"signature"`
	Expires   string `json:"expires"`
	URL       string `json:"url,omitempty"`
	Plaintext string `json:"plaintext,omitempty"`
}

func runEncode(args []string) error {
	flags := newFlagSet("encode")
	key := flags.String("key", "", "Shared SSO secret (default $"+ssoKeyEnv+")")
	email := flags.String("email", "", "Email address (required)")
	firstName := flags.String("first-name", "", "First name")
	lastName := flags.String("last-name", "", "Last name")
	nickName := flags.String("nickname", "", "Nickname (defaults to first name)")
	redirectURL := flags.String("redirect-url", "", "Base URL of the SSO-trusting site; prints the full redirect when set")
	issuedAt := flags.String("issued-at", "", "Issue time in RFC 3339 (default now)")
	plaintext := flags.Bool("plaintext", false, "Include the JSON document that was encrypted")
	logLevel := flags.String("log-level", "info", "Log level")

	if err := flags.Parse(args); err != nil {
		return err
	}
	logger := newLogger(*logLevel)

	if *email == "" {
		return fmt.Errorf("-email is required")
	}

	at := time.Now().UTC()
	if *issuedAt != "" {
		parsed, err := time.Parse(time.RFC3339, *issuedAt)
		if err != nil {
			return fmt.Errorf("invalid -issued-at: %w", err)
		}
		at = parsed
	}

	enc, err := newEncoder(*key)
	if err != nil {
		return err
	}

	person := identity.Identity{
		Email:     *email,
		FirstName: *firstName,
		LastName:  *lastName,
		NickName:  *nickName,
	}
	tok, err := enc.Encode(person, at)
	if err != nil {
		return fmt.Errorf("failed to encode: %w", err)
	}

	result := encodeResult{
		Token:     tok.Token,
		Signature: tok.Signature,
		Expires:   multipass.NewPayload(person, at).Expires,
	}
	if *redirectURL != "" {
		result.URL, err = multipass.RedirectURL(*redirectURL, tok)
		if err != nil {
			return err
		}
	}
	if *plaintext {
		body, err := multipass.PlaintextJSON(person, at)
		if err != nil {
			return err
		}
		result.Plaintext = string(body)
	}

	logger.WithField("email", *email).Debug("Encoded multipass token")
	return printJSON(result)
}
