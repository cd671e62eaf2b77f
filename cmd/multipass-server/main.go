package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/multipass/pkg/api"
	"github.com/platinummonkey/multipass/pkg/checkin"
	"github.com/platinummonkey/multipass/pkg/config"
	"github.com/platinummonkey/multipass/pkg/identity"
	"github.com/platinummonkey/multipass/pkg/login"
	"github.com/platinummonkey/multipass/pkg/notify"
	"github.com/platinummonkey/multipass/pkg/observability"
	"github.com/platinummonkey/multipass/pkg/ratelimit"
	"github.com/platinummonkey/multipass/pkg/session"
	"github.com/platinummonkey/multipass/pkg/sso"
	"github.com/platinummonkey/multipass/pkg/storage"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Server stopped with an error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return err
	}

	db, dialect, err := storage.OpenDB(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if err := storage.Migrate(ctx, db, dialect); err != nil {
		db.Close()
		return err
	}
	logger.WithField("dialect", dialect).Info("Database ready")

	var (
		redisClient  *redis.Client
		states       sso.StateStore
		sessionStore session.Store
	)
	if cfg.Storage.RedisURL != "" {
		redisClient, err = storage.NewRedisClient(ctx, cfg.Storage)
		if err != nil {
			db.Close()
			return err
		}
		states = sso.NewRedisStateStore(redisClient, cfg.Session.StateTTL)
		sessionStore = session.NewRedisStore(redisClient)
		logger.Info("Using Redis for sessions and provider state")
	} else {
		states = sso.NewMemoryStateStore(cfg.Session.StateCacheSize, cfg.Session.StateTTL)
		sessionStore = session.NewMemoryStore(cfg.Session.StateCacheSize, maxDuration(cfg.Session.TTL, cfg.Login.RememberMeDuration, session.DefaultRememberTTL))
		logger.Warn("No Redis configured; sessions and provider state are kept in memory on this node only")
	}

	identities := identity.NewSQLStore(db)
	mechanisms := identity.NewMechanisms(identity.NewBcryptMechanism(true))
	for _, p := range cfg.Providers {
		mechanisms.Register(identity.NewRemoteMechanism(p.Name, p.Enabled))
	}

	adapters := buildAdapters(ctx, sso.NewAdapterFactory(cfg.Server.BaseURL, states, identities), cfg.Providers, logger)
	registry := sso.NewRegistry(cfg.Login.RemoteAuthTypes, logger, adapters...)

	promRegistry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(promRegistry)
		storage.StartStatsRoutine(ctx, db, 15*time.Second, metrics.UpdateDBStats)
	}

	notifier, err := newNotifier(cfg.Email, logger)
	if err != nil {
		db.Close()
		return err
	}

	sessions := session.NewManager(sessionStore, cfg.Session.TTL, cfg.Login.RememberMeDuration)
	dispatcher, err := login.New(login.Deps{
		Verifier:    identity.NewVerifier(identities, mechanisms),
		LastLogin:   identities,
		Sessions:    sessions,
		Attendance:  checkin.NewPoster(checkin.NewSQLRecorder(db)),
		Notifier:    notifier,
		Metrics:     metrics,
		Logger:      logger,
		CallTimeout: cfg.Server.CallTimeout,
	}, cfg.Login.Options(registry))
	if err != nil {
		db.Close()
		return err
	}

	handler := api.NewServer(api.Deps{
		Dispatcher: dispatcher,
		Sessions:   sessions,
		Cookie: session.CookieOptions{
			Domain: cfg.Session.CookieDomain,
			Secure: cfg.Session.CookieSecure,
		},
		Metrics:   metrics,
		Logger:    logger,
		RateLimit: newRateLimit(ctx, cfg.Server, redisClient),
	})

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient, version))
	if metrics != nil {
		observability.RegisterMetricsEndpoint(healthMux, promRegistry)
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, server, healthServer)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		cancel()
		if redisClient != nil {
			redisClient.Close()
		}
		return db.Close()
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", server.Addr).Info("Starting multipass login server")
		return serve(server)
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Starting health and metrics server")
		return serve(healthServer)
	})
	if cfg.File != "" {
		g.Go(func() error {
			return config.Watch(gctx, cfg.File, logger, func(fc *config.FileConfig) {
				reload(dispatcher, fc, adapters, logger)
			})
		})
	}
	g.Go(func() error {
		return shutdown.WaitForShutdown(gctx)
	})

	return g.Wait()
}

// buildAdapters creates an adapter per configured provider. A provider
// that cannot be built is logged and left out so the rest keep working.
func buildAdapters(ctx context.Context, factory *sso.AdapterFactory, providers []sso.ProviderConfig, logger *observability.Logger) []sso.Adapter {
	adapters := make([]sso.Adapter, 0, len(providers))
	for i := range providers {
		p := providers[i]
		a, err := factory.CreateAdapter(ctx, &p)
		if err != nil {
			logger.WithError(err).WithField("provider", p.Name).Error("Failed to create provider adapter")
			continue
		}
		adapters = append(adapters, a)
	}
	return adapters
}

// reload swaps in the login settings of a changed config file. Providers
// are built once at startup; a reload only changes which of them are
// offered.
func reload(dispatcher *login.Dispatcher, fc *config.FileConfig, adapters []sso.Adapter, logger *observability.Logger) {
	defer observability.RecoverPanic(logger, "config reload")

	registry := sso.NewRegistry(fc.Login.RemoteAuthTypes, logger, adapters...)
	if err := dispatcher.SetOptions(fc.Login.Options(registry)); err != nil {
		logger.WithError(err).Error("Rejected reloaded login settings")
		return
	}
	logger.WithField("remote_auth_types", fc.Login.RemoteAuthTypes).Info("Login settings reloaded")
}

func newNotifier(cfg config.EmailConfig, logger *observability.Logger) (notify.Notifier, error) {
	if cfg.ResendAPIKey == "" {
		logger.Warn("No Resend API key configured; confirmation emails are logged instead of sent")
		return notify.NewLogNotifier(logger), nil
	}
	return notify.NewResendNotifier(notify.ResendConfig{
		APIKey:       cfg.ResendAPIKey,
		From:         cfg.From,
		Subject:      cfg.Subject,
		TemplateFile: cfg.TemplateFile,
		BaseURL:      cfg.ResendBaseURL,
	}, logger)
}

// newRateLimit returns the login attempt limiter, shared through Redis
// when it is configured
func newRateLimit(ctx context.Context, cfg config.ServerConfig, client *redis.Client) *ratelimit.Middleware {
	if cfg.LoginRateLimit == 0 {
		return nil
	}
	limits := &ratelimit.Config{
		RequestsPerWindow: cfg.LoginRateLimit,
		WindowDuration:    cfg.LoginRateWindow,
		BurstSize:         cfg.LoginRateBurst,
	}

	var limiter ratelimit.Limiter
	if client != nil {
		limiter = ratelimit.NewRedisLimiter(client, limits, "")
	} else {
		memory := ratelimit.NewMemoryLimiter(limits)
		memory.StartCleanup(ctx)
		limiter = memory
	}
	return ratelimit.NewMiddleware(limiter, cfg.LoginRateWindow, cfg.TrustProxy)
}

func serve(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func maxDuration(ds ...time.Duration) time.Duration {
	var m time.Duration
	for _, d := range ds {
		if d > m {
			m = d
		}
	}
	return m
}
