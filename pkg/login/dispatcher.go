package login

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/multipass/pkg/checkin"
	"github.com/platinummonkey/multipass/pkg/identity"
	"github.com/platinummonkey/multipass/pkg/multipass"
	"github.com/platinummonkey/multipass/pkg/notify"
	"github.com/platinummonkey/multipass/pkg/observability"
	"github.com/platinummonkey/multipass/pkg/session"
	"github.com/platinummonkey/multipass/pkg/sso"
)

// CredentialVerifier checks local credentials and resolves identities
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (identity.AccountStatus, identity.Identity, error)
	Resolve(ctx context.Context, username string) (identity.Identity, error)
}

// LastLoginRecorder advances the last login time of a user
type LastLoginRecorder interface {
	RecordLastLogin(ctx context.Context, username string, at time.Time) error
}

// SessionEstablisher marks the user authenticated for later requests
type SessionEstablisher interface {
	Establish(ctx context.Context, username string, remember bool) (*session.Session, error)
}

// AttendancePoster records attendance for a logged in person
type AttendancePoster interface {
	Post(ctx context.Context, settings checkin.Settings, personID int64) (bool, error)
}

// Deps are the collaborators of a Dispatcher. Verifier and LastLogin are
// required; the rest may be nil.
type Deps struct {
	Verifier   CredentialVerifier
	LastLogin  LastLoginRecorder
	Sessions   SessionEstablisher
	Attendance AttendancePoster
	Notifier   notify.Notifier
	Metrics    *observability.Metrics
	Logger     *observability.Logger

	// CallTimeout bounds each call to a store, provider or mailer. Zero
	// leaves the caller's deadline in charge.
	CallTimeout time.Duration
}

// Dispatcher routes login requests to their outcomes. It is safe for
// concurrent use; Handle never mutates shared state besides the stores.
type Dispatcher struct {
	deps Deps
	opts atomic.Pointer[Options]
	now  func() time.Time
}

// New creates a dispatcher with the initial options
func New(deps Deps, opts *Options) (*Dispatcher, error) {
	if deps.Verifier == nil {
		return nil, errors.New("login: verifier is required")
	}
	if deps.LastLogin == nil {
		return nil, errors.New("login: last login recorder is required")
	}
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	d := &Dispatcher{deps: deps, now: time.Now}
	if err := d.SetOptions(opts); err != nil {
		return nil, err
	}
	return d, nil
}

// SetOptions swaps in a copy of opts as the new snapshot. Later changes
// to opts are not seen by the dispatcher.
func (d *Dispatcher) SetOptions(opts *Options) error {
	if opts == nil {
		return errors.New("login: options are required")
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	snapshot := *opts
	if snapshot.Registry == nil {
		snapshot.Registry = sso.NewRegistry(nil, d.deps.Logger)
	}
	d.opts.Store(&snapshot)
	return nil
}

// Options returns the current options snapshot
func (d *Dispatcher) Options() *Options {
	return d.opts.Load()
}

// Handle runs one login request to its terminal outcome. The only error
// returned is a multipass configuration error; every other failure is
// reported through the Outcome.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (Outcome, error) {
	opts := d.opts.Load()
	start := d.now()

	ctx, span := observability.Tracer().Start(ctx, "login.Handle",
		trace.WithAttributes(attribute.String("login.kind", req.Kind.String())))
	defer span.End()

	out, kind, err := d.dispatch(ctx, opts, req)

	span.SetAttributes(attribute.String("login.outcome", out.State.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	d.deps.Metrics.ObserveLogin(kind, out.State.String(), d.now().Sub(start))
	return out, err
}

func (d *Dispatcher) dispatch(ctx context.Context, opts *Options, req Request) (Outcome, string, error) {
	if adapter, ok := opts.Registry.ReturnCallback(req.Request); ok {
		out, err := d.remoteReturn(ctx, opts, adapter, req)
		if err == nil || errors.Is(err, multipass.ErrConfiguration) {
			return out, "remote_return", err
		}
		// a rejected callback falls through to whatever else the request asks
		d.logger(ctx).WithError(err).WithField("provider", adapter.Name()).Debug("Remote callback rejected")
	}

	switch req.Kind {
	case KindLocal:
		out, err := d.localAttempt(ctx, opts, req)
		return out, "local", err
	case KindRemoteStart:
		return d.remoteStart(ctx, opts, req), "remote_start", nil
	default:
		return Outcome{State: StateShowForm}, "visit", nil
	}
}

func (d *Dispatcher) remoteReturn(ctx context.Context, opts *Options, adapter sso.Adapter, req Request) (Outcome, error) {
	callCtx, cancel := d.callContext(ctx)
	username, returnURL, err := adapter.CompleteAuthentication(callCtx, req.Request)
	cancel()
	returnURL = sso.SafeReturnURL(req.SiteRoot(), returnURL)
	if err == nil && username == "" {
		err = errors.New("provider returned no username")
	}
	d.deps.Metrics.ObserveRemoteCallback(adapter.Name(), err)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrRemoteCallbackRejected, err)
	}

	callCtx, cancel = d.callContext(ctx)
	id, err := d.deps.Verifier.Resolve(callCtx, username)
	cancel()
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: resolve %s: %v", ErrRemoteCallbackRejected, username, err)
	}

	if opts.RedirectPageURL != "" {
		returnURL = opts.RedirectPageURL
	}
	out, err := d.complete(ctx, opts, username, id, returnURL, false)
	out.Remote = true
	return out, err
}

func (d *Dispatcher) localAttempt(ctx context.Context, opts *Options, req Request) (Outcome, error) {
	ctx = observability.WithUsername(ctx, req.Username)
	logger := d.logger(ctx)

	callCtx, cancel := d.callContext(ctx)
	status, id, err := d.deps.Verifier.Verify(callCtx, req.Username, req.Password)
	cancel()
	if err != nil {
		logger.WithError(err).Warn("Credential lookup failed")
	}

	switch status {
	case identity.StatusAuthenticated:
		return d.complete(ctx, opts, req.Username, id, req.ReturnURL(), req.RememberMe)

	case identity.StatusLockedOut:
		caption, err := opts.renderLockedOutCaption()
		if err != nil {
			logger.WithError(err).Error("Failed to render locked out caption")
			caption = opts.lockedOutCaption()
		}
		logger.Info("Login refused for locked account")
		return Outcome{
			State:    StateLockedOut,
			Username: req.Username,
			Message:  caption,
			Err:      ErrAccountLocked,
		}, nil

	case identity.StatusPendingConfirmation:
		d.sendConfirmation(ctx, opts, req, id)
		return Outcome{
			State:    StatePendingConfirmation,
			Username: req.Username,
			Identity: id,
			Message:  opts.confirmCaption(),
			Err:      ErrAccountUnconfirmed,
		}, nil

	default:
		return Outcome{
			State:   StateInvalidCredentials,
			Message: InvalidCredentialsMessage,
			HelpURL: opts.helpURL(),
			Err:     ErrInvalidCredentials,
		}, nil
	}
}

func (d *Dispatcher) remoteStart(ctx context.Context, opts *Options, req Request) Outcome {
	callCtx, cancel := d.callContext(ctx)
	u, err := opts.Registry.BuildRedirectURI(callCtx, req.Provider, req.Request)
	cancel()
	label := "unknown"
	if _, known := opts.Registry.Get(req.Provider); known {
		label = lowerName(req.Provider)
	}
	d.deps.Metrics.ObserveRemoteRedirect(label, err)
	if err != nil {
		perr := &RemoteProviderUnavailableError{Provider: req.Provider, Err: err}
		d.logger(ctx).WithError(err).WithField("provider", req.Provider).Warn("Remote provider unavailable")
		return Outcome{
			State:   StateRemoteProviderUnavailable,
			Message: perr.Error(),
			Err:     perr,
		}
	}
	return Outcome{State: StateRemoteRedirectIssued, RedirectURL: u.String()}
}

// complete runs the post-login steps in order: last login, session,
// attendance, then the redirect
func (d *Dispatcher) complete(ctx context.Context, opts *Options, username string, id identity.Identity, returnURL string, remember bool) (Outcome, error) {
	ctx = observability.WithUsername(ctx, username)
	logger := d.logger(ctx)
	now := d.now()

	callCtx, cancel := d.callContext(ctx)
	if err := d.deps.LastLogin.RecordLastLogin(callCtx, username, now); err != nil {
		logger.WithError(err).Warn("Failed to record last login")
	}
	cancel()

	out := Outcome{State: StateAuthenticated, Username: username, Identity: id}

	if d.deps.Sessions != nil {
		callCtx, cancel = d.callContext(ctx)
		s, err := d.deps.Sessions.Establish(callCtx, username, remember)
		cancel()
		if err != nil {
			logger.WithError(err).Error("Failed to establish session")
		} else {
			out.Session = s
		}
	}

	if d.deps.Attendance != nil && opts.CheckIn.Configured() {
		callCtx, cancel = d.callContext(ctx)
		posted, err := d.deps.Attendance.Post(callCtx, opts.CheckIn, id.PersonID)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Failed to post attendance")
		}
		if err != nil || posted {
			d.deps.Metrics.ObserveAttendance(err)
		}
	}

	if !opts.SSOConfigured() {
		out.RedirectURL = returnURL
		logger.Info("User logged in")
		return out, nil
	}

	target, err := d.issue(ctx, opts, id, now)
	d.deps.Metrics.ObserveMultipass(err)
	if err != nil {
		logger.WithError(err).Error("Failed to issue multipass redirect")
		return Outcome{}, err
	}
	out.RedirectURL = target
	logger.Info("User logged in with multipass redirect")
	return out, nil
}

func (d *Dispatcher) issue(ctx context.Context, opts *Options, id identity.Identity, now time.Time) (string, error) {
	_, span := observability.Tracer().Start(ctx, "multipass.Issue")
	defer span.End()

	enc, err := multipass.NewEncoder(opts.SSOKey)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	target, err := enc.Issue(opts.RedirectURL, id, now)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %v", multipass.ErrConfiguration, err)
	}
	return target, nil
}

func (d *Dispatcher) sendConfirmation(ctx context.Context, opts *Options, req Request, id identity.Identity) {
	if d.deps.Notifier == nil {
		return
	}
	confirmURL := resolve(req.SiteRoot(), opts.confirmationURL())

	callCtx, cancel := d.callContext(ctx)
	err := d.deps.Notifier.SendConfirmationEmail(callCtx, id, confirmURL)
	cancel()
	d.deps.Metrics.ObserveConfirmationEmail(err)
	if err != nil {
		d.logger(ctx).WithError(err).Warn("Failed to send confirmation email")
	}
}

func (d *Dispatcher) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.deps.CallTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.deps.CallTimeout)
}

// logger prefers the request scoped logger set by the HTTP middleware
func (d *Dispatcher) logger(ctx context.Context) *observability.Logger {
	logger := d.deps.Logger
	if _, ok := ctx.Value(observability.LoggerKey).(*observability.Logger); ok {
		logger = observability.FromContext(ctx)
	} else if username := observability.GetUsername(ctx); username != "" {
		logger = logger.WithField("username", username)
	}
	return observability.UpdateLoggerWithTraceContext(ctx, logger)
}

// lowerName is used for CSS classes and metric labels
func lowerName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
