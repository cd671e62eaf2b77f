// Package observability provides structured logging, Prometheus metrics,
// health probes, OpenTelemetry tracing and graceful shutdown for the
// multipass login service.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("provider", "google").Info("remote redirect issued")
//
// Request scoped logging:
//
//	ctx = observability.WithLogger(ctx, logger)
//	ctx = observability.WithRequestID(ctx, reqID)
//	observability.FromContext(ctx).Warn("attendance not recorded")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveLogin("local", "authenticated", elapsed)
//
// The Observe helpers are safe on a nil *Metrics.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "multipass",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
