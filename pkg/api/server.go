package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/multipass/pkg/httputil"
	"github.com/platinummonkey/multipass/pkg/login"
	"github.com/platinummonkey/multipass/pkg/observability"
	"github.com/platinummonkey/multipass/pkg/ratelimit"
	"github.com/platinummonkey/multipass/pkg/session"
)

// maxFormBytes bounds login form and JSON bodies. SAML responses are the
// largest legitimate bodies.
const maxFormBytes = 1 << 20

// Sessions is the session lookup and teardown the handlers need
type Sessions interface {
	Lookup(ctx context.Context, id string) (*session.Session, error)
	End(ctx context.Context, id string) error
}

// Server represents the login HTTP surface
type Server struct {
	dispatcher *login.Dispatcher
	sessions   Sessions
	cookie     session.CookieOptions
	metrics    *observability.Metrics
	logger     *observability.Logger
	router     *mux.Router
	handler    http.Handler
}

// Deps are the collaborators of the Server. Sessions, Metrics and
// RateLimit may be nil.
type Deps struct {
	Dispatcher *login.Dispatcher
	Sessions   Sessions
	Cookie     session.CookieOptions
	Metrics    *observability.Metrics
	Logger     *observability.Logger

	// RateLimit throttles login attempts
	RateLimit *ratelimit.Middleware
}

// NewServer creates the login server with its routes and middleware
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	s := &Server{
		dispatcher: deps.Dispatcher,
		sessions:   deps.Sessions,
		cookie:     deps.Cookie,
		metrics:    deps.Metrics,
		logger:     logger,
		router:     mux.NewRouter(),
	}
	s.setupRoutes(deps.RateLimit)

	chain := httputil.Chain(
		httputil.RequestIDMiddleware(logger),
		httputil.RecoveryMiddleware,
		httputil.LoggingMiddleware,
		httputil.SecurityHeadersMiddleware,
		httputil.MaxBytesMiddleware(maxFormBytes),
		observability.HTTPMetricsMiddleware(deps.Metrics, s.routeLabel),
	)
	s.handler = otelhttp.NewHandler(chain(s.router), "multipass",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + s.routeLabel(r)
		}))
	return s
}

// setupRoutes configures all the login routes. Only the routes taking a
// password are rate limited.
func (s *Server) setupRoutes(limit *ratelimit.Middleware) {
	attempt := func(h http.HandlerFunc) http.Handler {
		if limit == nil {
			return h
		}
		return limit.Handler(h)
	}

	s.router.Handle("/login", attempt(s.handleLogin)).Methods("GET", "POST")
	s.router.HandleFunc("/login/page", s.handlePage).Methods("GET")
	s.router.HandleFunc("/login/new-account", s.handleNewAccount).Methods("GET")
	s.router.HandleFunc("/login/saml/{provider}/metadata", s.handleSAMLMetadata).Methods("GET")
	s.router.HandleFunc("/login/{provider}", s.handleRemoteStart).Methods("GET")

	s.router.Handle("/api/v1/login", attempt(s.handleAPILogin)).Methods("POST")
	s.router.HandleFunc("/api/v1/session", s.handleSession).Methods("GET")
	s.router.HandleFunc("/logout", s.handleLogout).Methods("GET", "POST")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// routeLabel names requests by route template to keep metric labels
// bounded
func (s *Server) routeLabel(r *http.Request) string {
	var match mux.RouteMatch
	if s.router.Match(r, &match) && match.Route != nil {
		if tmpl, err := match.Route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
