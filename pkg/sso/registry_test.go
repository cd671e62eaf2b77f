package sso

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/multipass/pkg/observability"
)

// fakeAdapter is a scriptable Adapter
type fakeAdapter struct {
	name     string
	active   bool
	remote   bool
	image    string
	callback func(Request) bool
	loginURI *url.URL
	loginErr error
	username string
	returnTo string
	authErr  error
}

func (f *fakeAdapter) Name() string                 { return f.name }
func (f *fakeAdapter) IsActive() bool               { return f.active }
func (f *fakeAdapter) RequiresRemoteRedirect() bool { return f.remote }
func (f *fakeAdapter) ImageURL() string             { return f.image }

func (f *fakeAdapter) IsReturnCallback(req Request) bool {
	return f.callback != nil && f.callback(req)
}

func (f *fakeAdapter) CompleteAuthentication(context.Context, Request) (string, string, error) {
	return f.username, f.returnTo, f.authErr
}

func (f *fakeAdapter) BuildLoginURI(ctx context.Context, _ Request) (*url.URL, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.loginURI, f.loginErr
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func mustRequest(t *testing.T, rawURL string) Request {
	t.Helper()
	req, err := NewRequest("GET", rawURL, nil, nil)
	require.NoError(t, err)
	return req
}

func TestRegistry_ListActive(t *testing.T) {
	registry := NewRegistry([]string{"Google", " facebook ", "azure", "twitter"}, nil,
		&fakeAdapter{name: "google", active: true, remote: true, image: "/img/google.png"},
		&fakeAdapter{name: "facebook", active: false, remote: true},
		&fakeAdapter{name: "azure", active: true, remote: false},
		&fakeAdapter{name: "okta", active: true, remote: true},
		&fakeAdapter{name: "twitter", active: true, remote: true},
	)

	active := registry.ListActive()
	require.Len(t, active, 2)
	assert.Equal(t, Descriptor{Name: "google", IsActive: true, RequiresRemoteRedirect: true, ImageURL: "/img/google.png"}, active[0])
	assert.Equal(t, "twitter", active[1].Name)
}

func TestRegistry_ListActive_Empty(t *testing.T) {
	registry := NewRegistry(nil, nil, &fakeAdapter{name: "google", active: true, remote: true})
	assert.Empty(t, registry.ListActive())
}

func TestRegistry_Get(t *testing.T) {
	google := &fakeAdapter{name: "Google"}
	registry := NewRegistry(nil, nil, google, nil, &fakeAdapter{name: "google"})

	a, ok := registry.Get("GOOGLE")
	require.True(t, ok)
	assert.Same(t, google, a)

	_, ok = registry.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_ReturnCallback(t *testing.T) {
	byState := func(prefix string) func(Request) bool {
		return func(r Request) bool { return r.Query("state") == prefix }
	}

	var buf bytes.Buffer
	logger := observability.NewLogger(observability.DebugLevel, &buf)

	first := &fakeAdapter{name: "first", active: true, remote: true, callback: byState("x")}
	second := &fakeAdapter{name: "second", active: true, remote: true, callback: byState("x")}
	inactive := &fakeAdapter{name: "inactive", active: false, remote: true, callback: byState("y")}
	local := &fakeAdapter{name: "local", active: true, remote: false, callback: byState("z")}
	unlisted := &fakeAdapter{name: "unlisted", active: true, remote: true, callback: byState("w")}
	registry := NewRegistry([]string{"first", "second", "inactive", "local"}, logger, first, second, inactive, unlisted, local)

	t.Run("first match wins", func(t *testing.T) {
		a, ok := registry.ReturnCallback(mustRequest(t, "https://sp.example.com/login?state=x"))
		require.True(t, ok)
		assert.Same(t, first, a)
		assert.Contains(t, buf.String(), "More than one provider claims the same callback")
	})

	t.Run("inactive provider never claims", func(t *testing.T) {
		_, ok := registry.ReturnCallback(mustRequest(t, "https://sp.example.com/login?state=y"))
		assert.False(t, ok)
	})

	t.Run("local provider never claims", func(t *testing.T) {
		_, ok := registry.ReturnCallback(mustRequest(t, "https://sp.example.com/login?state=z"))
		assert.False(t, ok)
	})

	t.Run("provider missing from allow-list never claims", func(t *testing.T) {
		_, ok := registry.ReturnCallback(mustRequest(t, "https://sp.example.com/login?state=w"))
		assert.False(t, ok)
	})

	t.Run("no match", func(t *testing.T) {
		_, ok := registry.ReturnCallback(mustRequest(t, "https://sp.example.com/login"))
		assert.False(t, ok)
	})
}

func TestRegistry_BuildRedirectURI(t *testing.T) {
	registry := NewRegistry([]string{"google", "broken", "nourl", "off"}, nil,
		&fakeAdapter{name: "google", active: true, remote: true, loginURI: mustURL(t, "https://accounts.example.com/auth?state=google:1")},
		&fakeAdapter{name: "broken", active: true, remote: true, loginErr: errors.New("boom")},
		&fakeAdapter{name: "nourl", active: true, remote: true},
		&fakeAdapter{name: "off", active: false, remote: true, loginURI: mustURL(t, "https://off.example.com")},
		&fakeAdapter{name: "hidden", active: true, remote: true, loginURI: mustURL(t, "https://hidden.example.com")},
	)
	req := mustRequest(t, "https://sp.example.com/login/google")

	u, err := registry.BuildRedirectURI(context.Background(), "google", req)
	require.NoError(t, err)
	assert.Equal(t, "accounts.example.com", u.Host)

	for _, name := range []string{"broken", "nourl", "off", "hidden", "missing"} {
		t.Run(name, func(t *testing.T) {
			u, err := registry.BuildRedirectURI(context.Background(), name, req)
			assert.Nil(t, u)
			assert.ErrorIs(t, err, ErrNoRemoteURL)
		})
	}
}

func TestRegistry_BuildRedirectURI_Cancelled(t *testing.T) {
	registry := NewRegistry([]string{"google"}, nil,
		&fakeAdapter{name: "google", active: true, remote: true, loginURI: mustURL(t, "https://accounts.example.com")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := registry.BuildRedirectURI(ctx, "google", mustRequest(t, "https://sp.example.com/"))
	assert.ErrorIs(t, err, ErrNoRemoteURL)
}
