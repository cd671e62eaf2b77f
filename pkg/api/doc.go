// Package api provides the HTTP surface of the multipass login service.
//
// # Overview
//
// Handlers translate HTTP requests into login.Request values, run them
// through the login.Dispatcher and turn the Outcome into a redirect, a
// session cookie, or a JSON body. The package holds no login rules of its
// own.
//
// # Key Types
//
// Server is the login server with its router and middleware:
//
//	server := api.NewServer(api.Deps{
//		Dispatcher: dispatcher,
//		Sessions:   sessions,
//		Cookie:     session.CookieOptions{Secure: true},
//		Metrics:    metrics,
//		Logger:     logger,
//		RateLimit:  ratelimit.NewMiddleware(limiter, time.Minute, false),
//	})
//	http.ListenAndServe(":8080", server)
//
// # API Endpoints
//
// Browser flow:
//
//	GET    /login                            - Show the form, or finish a provider callback
//	POST   /login                            - Local attempt (username, password, remember_me) or SAML post-back
//	GET    /login/{provider}                 - Start a remote login
//	GET    /login/page                       - Login page model as JSON
//	GET    /login/new-account                - Redirect to the registration page
//	GET    /login/saml/{provider}/metadata   - SAML service provider metadata
//	GET    /logout                           - End the session
//
// Script clients:
//
//	POST   /api/v1/login                     - Local attempt; the redirect is returned in the body
//	GET    /api/v1/session                   - Current session
//
// # Status Codes
//
// Successful logins answer 302 to browsers and 200 to script clients.
// Invalid credentials answer 401, locked and unconfirmed accounts 403, an
// unavailable provider 502, and a broken multipass configuration 500 with
// the error code "configuration_error". Throttled attempts answer 429.
//
// # Middleware
//
// Every request passes request id, panic recovery, access logging,
// security headers, a body size cap and HTTP metrics, inside an
// OpenTelemetry server span named after the route template.
package api
