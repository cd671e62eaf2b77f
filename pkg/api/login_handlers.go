package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/multipass/pkg/httputil"
	"github.com/platinummonkey/multipass/pkg/login"
	"github.com/platinummonkey/multipass/pkg/observability"
	"github.com/platinummonkey/multipass/pkg/session"
	"github.com/platinummonkey/multipass/pkg/sso"
)

const loginPath = "/login"

// samlMetadataProvider is implemented by adapters that publish SP metadata
type samlMetadataProvider interface {
	Metadata() ([]byte, error)
}

// handleLogin handles GET and POST /login. A post carrying a username is a
// local attempt; anything else may be a provider callback.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := s.loginRequest(w, r, login.KindVisit)
	if !ok {
		return
	}
	if r.Method == http.MethodPost && r.PostFormValue("username") != "" {
		req.Kind = login.KindLocal
		req.Username = strings.TrimSpace(r.PostFormValue("username"))
		req.Password = r.PostFormValue("password")
		req.RememberMe = httputil.FormBool(r, "remember_me")
	}

	out, err := s.dispatcher.Handle(r.Context(), req)
	s.writeOutcome(w, r, req, out, err, true)
}

// handleRemoteStart handles GET /login/{provider}
func (s *Server) handleRemoteStart(w http.ResponseWriter, r *http.Request) {
	provider, ok := httputil.ParsePathStringOrError(w, r, "provider")
	if !ok {
		return
	}
	req, ok := s.loginRequest(w, r, login.KindRemoteStart)
	if !ok {
		return
	}
	req.Provider = provider

	out, err := s.dispatcher.Handle(r.Context(), req)
	s.writeOutcome(w, r, req, out, err, true)
}

// handleAPILogin handles POST /api/v1/login for script clients. Redirects
// are returned in the body instead of followed.
func (s *Server) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	req, ok := s.loginRequest(w, r, login.KindLocal)
	if !ok {
		return
	}
	var body LoginRequest
	if !httputil.ParseJSONOrError(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Username) == "" {
		httputil.WriteBadRequest(w, "username is required")
		return
	}
	req.Username = strings.TrimSpace(body.Username)
	req.Password = body.Password
	req.RememberMe = body.RememberMe

	out, err := s.dispatcher.Handle(r.Context(), req)
	s.writeOutcome(w, r, req, out, err, false)
}

// handlePage handles GET /login/page
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	page := s.dispatcher.LoginPage(loginPath, returnURL(r))
	_ = httputil.WriteSuccess(w, page)
}

// handleNewAccount handles GET /login/new-account
func (s *Server) handleNewAccount(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.dispatcher.NewAccountURL(returnURL(r)), http.StatusFound)
}

// handleSAMLMetadata handles GET /login/saml/{provider}/metadata
func (s *Server) handleSAMLMetadata(w http.ResponseWriter, r *http.Request) {
	provider, ok := httputil.ParsePathStringOrError(w, r, "provider")
	if !ok {
		return
	}
	adapter, found := s.dispatcher.Options().Registry.Get(provider)
	meta, isSAML := adapter.(samlMetadataProvider)
	if !found || !isSAML {
		httputil.WriteNotFoundError(w, "no SAML provider named "+provider)
		return
	}

	data, err := meta.Metadata()
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).WithField("provider", provider).Error("Failed to build SAML metadata")
		httputil.WriteInternalError(w, errors.New("failed to build metadata"))
		return
	}
	w.Header().Set("Content-Type", "application/samlmetadata+xml")
	_, _ = w.Write(data)
}

// handleSession handles GET /api/v1/session
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(r)
	if sess == nil {
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "not logged in")
		return
	}
	_ = httputil.WriteSuccess(w, SessionResponse{
		Username:   sess.Username,
		ExpiresAt:  sess.ExpiresAt,
		Persistent: sess.Persistent,
	})
}

// handleLogout handles GET and POST /logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(session.CookieName); err == nil && s.sessions != nil {
		if err := s.sessions.End(r.Context(), c.Value); err != nil {
			observability.FromContext(r.Context()).WithError(err).Warn("Failed to end session")
		}
	}
	session.ClearCookie(w, s.cookie)

	if target := returnURL(r); isLocalPath(target) {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) currentSession(r *http.Request) *session.Session {
	if s.sessions == nil {
		return nil
	}
	c, err := r.Cookie(session.CookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	sess, err := s.sessions.Lookup(r.Context(), c.Value)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			observability.FromContext(r.Context()).WithError(err).Warn("Session lookup failed")
		}
		return nil
	}
	return sess
}

func (s *Server) loginRequest(w http.ResponseWriter, r *http.Request, kind login.Kind) (login.Request, bool) {
	base, err := sso.RequestFromHTTP(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return login.Request{}, false
	}
	return login.Request{Request: base, Kind: kind}, true
}

// writeOutcome translates an outcome into a response. Browser requests
// follow redirects; API requests get them in the body.
func (s *Server) writeOutcome(w http.ResponseWriter, r *http.Request, req login.Request, out login.Outcome, err error, browser bool) {
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Login failed with a configuration error")
		httputil.WriteDetailedError(w, http.StatusInternalServerError, "configuration_error",
			"Login is temporarily unavailable. Please contact the site administrator.")
		return
	}

	if out.Session != nil {
		session.SetCookie(w, out.Session, s.cookie)
	}

	resp := LoginResponse{
		State:       out.State.String(),
		Username:    out.Username,
		RedirectURL: out.RedirectURL,
		Message:     out.Message,
		HelpURL:     out.HelpURL,
	}

	status := http.StatusOK
	switch out.State {
	case login.StateAuthenticated, login.StateRemoteRedirectIssued:
		if browser && out.Redirect() {
			http.Redirect(w, r, out.RedirectURL, http.StatusFound)
			return
		}
		if browser && out.State == login.StateAuthenticated {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
	case login.StateShowForm:
		page := s.dispatcher.LoginPage(loginPath, req.ReturnURL())
		resp.Page = &page
	case login.StateInvalidCredentials:
		status = http.StatusUnauthorized
	case login.StateLockedOut, login.StatePendingConfirmation:
		status = http.StatusForbidden
	case login.StateRemoteProviderUnavailable:
		status = http.StatusBadGateway
	}
	_ = httputil.WriteJSON(w, status, resp)
}

// returnURL reads the returnurl query parameter the way the dispatcher does
func returnURL(r *http.Request) string {
	req, err := sso.NewRequest(r.Method, r.URL.String(), nil, nil)
	if err != nil {
		return ""
	}
	return req.ReturnURL()
}

func isLocalPath(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") && !strings.HasPrefix(target, "/\\")
}
