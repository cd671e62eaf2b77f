package sso

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProvisioner struct {
	mu    sync.Mutex
	users []*RemoteUser
}

func (p *recordingProvisioner) ProvisionRemoteLogin(_ context.Context, user *RemoteUser) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users = append(p.users, user)
	return strings.ToUpper(user.ProviderName) + "_" + user.ExternalID, nil
}

func newFakeOAuth2Server(t *testing.T, userInfo map[string]interface{}) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "access-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(userInfo)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testOAuth2Config(serverURL string) *ProviderConfig {
	return &ProviderConfig{
		Name:    "facebook",
		Type:    ProviderTypeOAuth2,
		Enabled: true,
		OAuth2: &OAuth2Config{
			ClientID:     "client",
			ClientSecret: "secret",
			AuthURL:      serverURL + "/authorize",
			TokenURL:     serverURL + "/token",
			UserInfoURL:  serverURL + "/userinfo",
			RedirectURL:  "https://church.example.com/login",
			Scopes:       []string{"email"},
		},
		AttributeMapping: AttributeMap{
			UserID:    "id",
			Email:     "email",
			FirstName: "first_name",
			LastName:  "last_name",
		},
	}
}

func TestNewOAuth2Adapter_Validation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*OAuth2Config)
		errorMsg string
	}{
		{name: "missing client_id", mutate: func(c *OAuth2Config) { c.ClientID = "" }, errorMsg: "client_id is required"},
		{name: "missing client_secret", mutate: func(c *OAuth2Config) { c.ClientSecret = "" }, errorMsg: "client_secret is required"},
		{name: "missing auth_url", mutate: func(c *OAuth2Config) { c.AuthURL = "" }, errorMsg: "auth_url is required"},
		{name: "missing token_url", mutate: func(c *OAuth2Config) { c.TokenURL = "" }, errorMsg: "token_url is required"},
		{name: "missing user_info_url", mutate: func(c *OAuth2Config) { c.UserInfoURL = "" }, errorMsg: "user_info_url is required"},
		{name: "missing redirect_url", mutate: func(c *OAuth2Config) { c.RedirectURL = "" }, errorMsg: "redirect_url is required"},
		{name: "missing scopes", mutate: func(c *OAuth2Config) { c.Scopes = nil }, errorMsg: "scopes are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testOAuth2Config("https://provider.example.com")
			tt.mutate(cfg.OAuth2)

			_, err := NewOAuth2Adapter(cfg, NewMemoryStateStore(10, 0), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}

	_, err := NewOAuth2Adapter(&ProviderConfig{Name: "x"}, NewMemoryStateStore(10, 0), nil)
	assert.EqualError(t, err, "OAuth2 config is required")
}

func TestOAuth2Adapter_FullFlow(t *testing.T) {
	srv := newFakeOAuth2Server(t, map[string]interface{}{
		"id":         float64(1234567890),
		"email":      "ted@example.com",
		"first_name": "Theodore",
		"last_name":  "Decker",
		"verified":   true,
	})
	states := NewMemoryStateStore(10, 0)
	provisioner := &recordingProvisioner{}

	adapter, err := NewOAuth2Adapter(testOAuth2Config(srv.URL), states, provisioner)
	require.NoError(t, err)
	assert.Equal(t, "facebook", adapter.Name())
	assert.True(t, adapter.IsActive())
	assert.True(t, adapter.RequiresRemoteRedirect())

	ctx := context.Background()
	start, err := NewRequest("GET", "https://church.example.com/login/facebook?returnurl=%2Fwatch", nil, nil)
	require.NoError(t, err)

	loginURI, err := adapter.BuildLoginURI(ctx, start)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/authorize", loginURI.Scheme+"://"+loginURI.Host+loginURI.Path)
	assert.Equal(t, "client", loginURI.Query().Get("client_id"))
	state := loginURI.Query().Get("state")
	assert.True(t, strings.HasPrefix(state, "facebook:"))

	callback, err := NewRequest("GET", "https://church.example.com/login?code=good-code&state="+state, nil, nil)
	require.NoError(t, err)
	require.True(t, adapter.IsReturnCallback(callback))

	username, returnURL, err := adapter.CompleteAuthentication(ctx, callback)
	require.NoError(t, err)
	assert.Equal(t, "FACEBOOK_1234567890", username)
	assert.Equal(t, "/watch", returnURL)

	require.Len(t, provisioner.users, 1)
	user := provisioner.users[0]
	assert.Equal(t, "1234567890", user.ExternalID)
	assert.Equal(t, "ted@example.com", user.Email)
	assert.Equal(t, "ted@example.com", user.Username)
	assert.Equal(t, "Theodore", user.FirstName)
	assert.Equal(t, "facebook", user.ProviderName)
	assert.Equal(t, "true", user.Attributes["verified"])

	// replaying the callback fails because the state was consumed
	_, _, err = adapter.CompleteAuthentication(ctx, callback)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestOAuth2Adapter_CallbackFailures(t *testing.T) {
	srv := newFakeOAuth2Server(t, map[string]interface{}{"email": "ted@example.com"})
	states := NewMemoryStateStore(10, 0)
	adapter, err := NewOAuth2Adapter(testOAuth2Config(srv.URL), states, nil)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("provider reported error", func(t *testing.T) {
		require.NoError(t, states.Save(ctx, "facebook:denied", State{Provider: "facebook"}))
		req, err := NewRequest("GET", "/login?error=access_denied&state=facebook:denied", nil, nil)
		require.NoError(t, err)
		require.True(t, adapter.IsReturnCallback(req))

		_, _, err = adapter.CompleteAuthentication(ctx, req)
		assert.ErrorIs(t, err, ErrCallbackDenied)
	})

	t.Run("bad code", func(t *testing.T) {
		require.NoError(t, states.Save(ctx, "facebook:bad", State{Provider: "facebook"}))
		req, err := NewRequest("GET", "/login?code=bad-code&state=facebook:bad", nil, nil)
		require.NoError(t, err)

		_, _, err = adapter.CompleteAuthentication(ctx, req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to exchange token")
	})

	t.Run("missing user id", func(t *testing.T) {
		require.NoError(t, states.Save(ctx, "facebook:noid", State{Provider: "facebook"}))
		req, err := NewRequest("GET", "/login?code=good-code&state=facebook:noid", nil, nil)
		require.NoError(t, err)

		_, _, err = adapter.CompleteAuthentication(ctx, req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing user id")
	})

	t.Run("state from another provider", func(t *testing.T) {
		req, err := NewRequest("GET", "/login?code=good-code&state=google:abc", nil, nil)
		require.NoError(t, err)
		assert.False(t, adapter.IsReturnCallback(req))

		_, _, err = adapter.CompleteAuthentication(ctx, req)
		assert.ErrorIs(t, err, ErrNotCallback)
	})

	t.Run("state saved for another provider", func(t *testing.T) {
		require.NoError(t, states.Save(ctx, "facebook:swapped", State{Provider: "google"}))
		req, err := NewRequest("GET", "/login?code=good-code&state=facebook:swapped", nil, nil)
		require.NoError(t, err)

		_, _, err = adapter.CompleteAuthentication(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestGetStringValue(t *testing.T) {
	data := map[string]interface{}{"s": "x", "n": float64(42), "b": true}
	assert.Equal(t, "x", getStringValue(data, "s"))
	assert.Equal(t, "42", getStringValue(data, "n"))
	assert.Equal(t, "", getStringValue(data, "b"))
	assert.Equal(t, "", getStringValue(data, "missing"))
	assert.Equal(t, "", getStringValue(data, ""))
}
