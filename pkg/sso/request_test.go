package sso

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestFromHTTP(t *testing.T) {
	body := strings.NewReader(url.Values{"username": {"ted"}, "password": {"pw"}}.Encode())
	r := httptest.NewRequest(http.MethodPost, "https://church.example.com/login?returnurl=%252Fgive%253Fa%253D1&x=1", body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.AddCookie(&http.Cookie{Name: "multipass_session", Value: "abc"})

	req, err := RequestFromHTTP(r)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https", req.Scheme)
	assert.Equal(t, "church.example.com", req.Host)
	assert.Equal(t, "/login", req.Path)
	assert.Equal(t, "ted", req.Form("username"))
	assert.Equal(t, "", req.Form("x"))
	assert.Equal(t, "1", req.Param("x"))
	assert.Equal(t, "/give?a=1", req.ReturnURL())
	assert.Equal(t, "https://church.example.com", req.SiteRoot())

	v, ok := req.Cookie("multipass_session")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestRequestFromHTTP_Scheme(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://church.example.com/login", nil)
	req, err := RequestFromHTTP(r)
	require.NoError(t, err)
	assert.Equal(t, "http", req.Scheme)

	r.Header.Set("X-Forwarded-Proto", "HTTPS, http")
	req, err = RequestFromHTTP(r)
	require.NoError(t, err)
	assert.Equal(t, "https", req.Scheme)

	r = httptest.NewRequest(http.MethodGet, "http://church.example.com/login", nil)
	r.TLS = &tls.ConnectionState{}
	req, err = RequestFromHTTP(r)
	require.NoError(t, err)
	assert.Equal(t, "https", req.Scheme)
}

func TestNewRequest_CopiesInputs(t *testing.T) {
	form := url.Values{"a": {"1"}}
	cookies := map[string]string{"c": "1"}

	req, err := NewRequest("post", "/login?returnurl=%2Fhome", form, cookies)
	require.NoError(t, err)

	form.Set("a", "2")
	cookies["c"] = "2"

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "http", req.Scheme)
	assert.Equal(t, "1", req.Form("a"))
	v, _ := req.Cookie("c")
	assert.Equal(t, "1", v)
	assert.Equal(t, "/home", req.ReturnURL())
}

func TestNewRequest_InvalidURL(t *testing.T) {
	_, err := NewRequest("GET", "http://[::1", nil, nil)
	assert.Error(t, err)
}

func TestSafeReturnURL(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"empty", "", ""},
		{"local path", "/groups?id=4", "/groups?id=4"},
		{"same host", "https://church.example.com/give", "https://church.example.com/give"},
		{"same host other case", "http://CHURCH.example.com/give", "http://CHURCH.example.com/give"},
		{"other host", "https://evil.example.net/phish", ""},
		{"protocol relative", "//evil.example.net", ""},
		{"backslash", "/\\evil.example.net", ""},
		{"control character", "/\t/evil.example.net", ""},
		{"script scheme", "javascript:alert(1)", ""},
		{"relative path", "groups", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeReturnURL("https://church.example.com", tt.target))
		})
	}
}

func TestRequest_ReturnURLDropsOffSiteTargets(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "https://church.example.com/login?returnurl=https%3A%2F%2Fevil.example.net%2Fphish", nil)
	req, err := RequestFromHTTP(r)
	require.NoError(t, err)
	assert.Equal(t, "", req.ReturnURL())

	r = httptest.NewRequest(http.MethodGet, "https://church.example.com/login?returnurl=https%3A%2F%2Fchurch.example.com%2Fgive", nil)
	req, err = RequestFromHTTP(r)
	require.NoError(t, err)
	assert.Equal(t, "https://church.example.com/give", req.ReturnURL())
}
