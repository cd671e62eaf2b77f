package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/multipass/pkg/httputil"
	"github.com/platinummonkey/multipass/pkg/observability"
)

// Middleware limits login attempts per client address. Only POST requests
// count; page views and provider redirects are never limited.
type Middleware struct {
	limiter    Limiter
	retryAfter time.Duration
	trustProxy bool
}

// NewMiddleware creates the middleware. When trustProxy is set the client
// address is taken from X-Forwarded-For.
func NewMiddleware(limiter Limiter, window time.Duration, trustProxy bool) *Middleware {
	if window <= 0 {
		window = time.Minute
	}
	return &Middleware{limiter: limiter, retryAfter: window, trustProxy: trustProxy}
}

// Handler wraps next with rate limiting
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.limiter == nil || r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		ip := ClientIP(r, m.trustProxy)
		allowed, err := m.limiter.Allow(r.Context(), "ip:"+ip)
		if err != nil {
			// fail open
			observability.FromContext(r.Context()).WithError(err).Warn("Rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			observability.FromContext(r.Context()).WithField("client_ip", ip).Warn("Login attempts rate limited")
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", m.retryAfter.Seconds()))
			httputil.WriteDetailedError(w, http.StatusTooManyRequests, "rate_limited",
				"Too many login attempts. Please wait a moment and try again.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the address of the client. With trustProxy the first
// X-Forwarded-For entry wins, then X-Real-IP.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
