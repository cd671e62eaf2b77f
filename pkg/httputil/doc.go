// Package httputil provides the JSON response writers, request parsing
// helpers and middleware shared by the HTTP handlers.
//
// Middleware are composed with Chain:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.LoggingMiddleware,
//	)(router)
//
// RequestIDMiddleware stores the request id and logger in the context, so
// observability.FromContext returns a logger carrying the request id.
package httputil
