package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/multipass/pkg/multipass"
)

func newDecodeCommand() *Command {
	return &Command{
		Name:        "decode",
		Description: "Decrypt a multipass token and print its payload",
		Run:         runDecode,
	}
}

func newVerifyCommand() *Command {
	return &Command{
		Name:        "verify",
		Description: "Check a multipass signature against the shared secret",
		Run:         runVerify,
	}
}

// decodeResult is printed by decode
type decodeResult struct {
	Payload        multipass.Payload `json:"payload"`
	SignatureValid *bool             `json:"signature_valid,omitempty"`
	Expired        bool              `json:"expired"`
}

func runDecode(args []string) error {
	flags := newFlagSet("decode")
	key := flags.String("key", "", "Shared SSO secret (default $"+ssoKeyEnv+")")
	rawURL := flags.String("url", "", "Full redirect URL carrying sso and signature")
	token := flags.String("token", "", "Token (the sso parameter)")
	signature := flags.String("signature", "", "Signature; checked when given")
	logLevel := flags.String("log-level", "info", "Log level")

	if err := flags.Parse(args); err != nil {
		return err
	}
	logger := newLogger(*logLevel)

	tok, err := tokenInput(*rawURL, *token, *signature)
	if err != nil {
		return err
	}
	enc, err := newEncoder(*key)
	if err != nil {
		return err
	}

	payload, err := enc.Decode(tok.Token)
	if err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}

	result := decodeResult{Payload: payload}
	if tok.Signature != "" {
		valid := enc.Verify(tok.Token, tok.Signature)
		result.SignatureValid = &valid
		if !valid {
			logger.Warn("Signature does not match the token")
		}
	}
	if expires, err := payload.ExpiresAt(); err != nil {
		logger.WithError(err).Warn("Payload has an unreadable expires field")
	} else {
		result.Expired = time.Now().UTC().After(expires)
	}

	return printJSON(result)
}

func runVerify(args []string) error {
	flags := newFlagSet("verify")
	key := flags.String("key", "", "Shared SSO secret (default $"+ssoKeyEnv+")")
	rawURL := flags.String("url", "", "Full redirect URL carrying sso and signature")
	token := flags.String("token", "", "Token (the sso parameter)")
	signature := flags.String("signature", "", "Signature (required unless -url is given)")
	logLevel := flags.String("log-level", "info", "Log level")

	if err := flags.Parse(args); err != nil {
		return err
	}
	logger := newLogger(*logLevel)

	tok, err := tokenInput(*rawURL, *token, *signature)
	if err != nil {
		return err
	}
	if tok.Signature == "" {
		return errors.New("a signature is required")
	}
	enc, err := newEncoder(*key)
	if err != nil {
		return err
	}

	if _, err := enc.DecodeSigned(tok); err != nil {
		logger.WithError(err).Error("Token rejected")
		return err
	}
	fmt.Fprintln(output, "valid")
	return nil
}
