package session

import (
	"net/http"
	"time"
)

// CookieName is the name of the session cookie
const CookieName = "multipass_session"

// CookieOptions defines how session cookies are issued
type CookieOptions struct {
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

func (o CookieOptions) normalize() CookieOptions {
	if o.Path == "" {
		o.Path = "/"
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	return o
}

// Cookie returns the cookie for s. Only persistent sessions carry an
// expiry; others end with the browser session.
func Cookie(s *Session, opts CookieOptions) *http.Cookie {
	opts = opts.normalize()
	c := &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     opts.Path,
		Domain:   opts.Domain,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	}
	if s.Persistent {
		c.Expires = s.ExpiresAt
		c.MaxAge = int(time.Until(s.ExpiresAt).Seconds())
	}
	return c
}

// SetCookie issues the session cookie
func SetCookie(w http.ResponseWriter, s *Session, opts CookieOptions) {
	http.SetCookie(w, Cookie(s, opts))
}

// ClearCookie removes the session cookie
func ClearCookie(w http.ResponseWriter, opts CookieOptions) {
	opts = opts.normalize()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     opts.Path,
		Domain:   opts.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}
