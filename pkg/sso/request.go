package sso

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Request is an immutable description of an incoming HTTP request. The
// login core reads it instead of the live *http.Request.
type Request struct {
	Method  string
	Scheme  string
	Host    string
	Path    string
	query   url.Values
	form    url.Values
	cookies map[string]string
}

// NewRequest builds a Request from its parts. The maps are copied.
func NewRequest(method, rawURL string, form url.Values, cookies map[string]string) (Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Request{}, fmt.Errorf("invalid request url: %w", err)
	}

	req := Request{
		Method:  strings.ToUpper(method),
		Scheme:  u.Scheme,
		Host:    u.Host,
		Path:    u.Path,
		query:   cloneValues(u.Query()),
		form:    cloneValues(form),
		cookies: make(map[string]string, len(cookies)),
	}
	if req.Scheme == "" {
		req.Scheme = "http"
	}
	for k, v := range cookies {
		req.cookies[k] = v
	}
	return req, nil
}

// RequestFromHTTP captures r. The body is parsed for form posts.
func RequestFromHTTP(r *http.Request) (Request, error) {
	if err := r.ParseForm(); err != nil {
		return Request{}, fmt.Errorf("failed to parse form: %w", err)
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}

	cookies := make(map[string]string)
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}

	return Request{
		Method:  r.Method,
		Scheme:  scheme,
		Host:    r.Host,
		Path:    r.URL.Path,
		query:   cloneValues(r.URL.Query()),
		form:    cloneValues(r.PostForm),
		cookies: cookies,
	}, nil
}

// Query returns the first query value for key
func (r Request) Query(key string) string {
	return r.query.Get(key)
}

// Form returns the first posted form value for key
func (r Request) Form(key string) string {
	return r.form.Get(key)
}

// Param returns the posted value for key, falling back to the query
func (r Request) Param(key string) string {
	if v := r.form.Get(key); v != "" {
		return v
	}
	return r.query.Get(key)
}

// Cookie returns the named cookie value
func (r Request) Cookie(name string) (string, bool) {
	v, ok := r.cookies[name]
	return v, ok
}

// SiteRoot returns scheme://host
func (r Request) SiteRoot() string {
	return r.Scheme + "://" + r.Host
}

// ReturnURL returns the decoded returnurl query value. Targets off this
// site are dropped.
func (r Request) ReturnURL() string {
	raw := r.query.Get("returnurl")
	if raw == "" {
		return ""
	}
	// values arrive encoded twice when they were appended by hand
	if decoded, err := url.QueryUnescape(raw); err == nil {
		raw = decoded
	}
	return SafeReturnURL(r.SiteRoot(), raw)
}

// SafeReturnURL returns target when it is a path on this site or an
// absolute URL on siteRoot's host, and "" otherwise
func SafeReturnURL(siteRoot, target string) string {
	if target == "" || strings.ContainsAny(target, "\\") {
		return ""
	}
	for _, c := range target {
		if c < 0x20 || c == 0x7f {
			return ""
		}
	}
	if strings.HasPrefix(target, "/") {
		if strings.HasPrefix(target, "//") {
			return ""
		}
		return target
	}

	u, err := url.Parse(target)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	root, err := url.Parse(siteRoot)
	if err != nil || root.Host == "" || !strings.EqualFold(u.Host, root.Host) {
		return ""
	}
	return target
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
