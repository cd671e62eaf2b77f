package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/multipass/pkg/multipass"
)

// ssoKeyEnv supplies the shared secret when -key is not given
const ssoKeyEnv = "MULTIPASS_SSO_KEY"

// newFlagSet returns a flag set that reports errors instead of exiting
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// newLogger creates the logger commands report progress with. Output goes
// to stderr so stdout carries only results.
func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// newEncoder builds an encoder from -key, falling back to the environment
func newEncoder(key string) (*multipass.Encoder, error) {
	if key == "" {
		key = os.Getenv(ssoKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("-key or %s is required", ssoKeyEnv)
	}
	return multipass.NewEncoder(key)
}

// tokenInput resolves the token and signature from either a full redirect
// URL or the individual flags
func tokenInput(rawURL, token, signature string) (multipass.Token, error) {
	if rawURL != "" {
		u, err := url.Parse(rawURL)
		if err != nil {
			return multipass.Token{}, fmt.Errorf("invalid url: %w", err)
		}
		q := u.Query()
		token, signature = q.Get("sso"), q.Get("signature")
		if token == "" {
			return multipass.Token{}, fmt.Errorf("url has no sso parameter")
		}
	}
	if token == "" {
		return multipass.Token{}, fmt.Errorf("-token or -url is required")
	}
	return multipass.Token{
		Token:     strings.TrimSpace(token),
		Signature: strings.TrimSpace(signature),
	}, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(output)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
