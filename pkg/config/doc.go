// Package config loads the multipass configuration from environment
// variables and an optional YAML file.
//
// # Environment
//
// Server settings:
//
//	MULTIPASS_HOST="0.0.0.0"
//	MULTIPASS_PORT="8080"
//	MULTIPASS_HEALTH_PORT="9090"
//	MULTIPASS_BASE_URL="https://login.example.org"
//	MULTIPASS_CALL_TIMEOUT="10s"
//
// Storage settings:
//
//	MULTIPASS_DATABASE_URL="postgres://multipass@db/multipass"  # or sqlite://multipass.db
//	MULTIPASS_DATABASE_MAX_CONNS="20"
//	MULTIPASS_REDIS_URL="redis://localhost:6379"
//
// Sessions and email:
//
//	MULTIPASS_SESSION_TTL="12h"
//	MULTIPASS_COOKIE_DOMAIN="example.org"
//	MULTIPASS_RESEND_API_KEY="re_..."
//	MULTIPASS_EMAIL_FROM="Church <noreply@example.org>"
//
// Observability settings:
//
//	MULTIPASS_LOG_LEVEL="info"  # debug, info, warn, error
//	MULTIPASS_OTEL_ENABLED="true"
//	MULTIPASS_OTEL_ENDPOINT="otel-collector:4317"
//
// # Config file
//
// MULTIPASS_CONFIG_FILE names a YAML file with the login settings and the
// remote providers:
//
//	login:
//	  check_in_group: 12
//	  campus: 1
//	  schedules:
//	    - id: 3
//	      name: Sunday
//	      cron: "CRON_TZ=America/Phoenix 0 9 * * 0"
//	      check_in_opens_before: 30m
//	      check_in_closes_after: 90m
//	      check_in_enabled: true
//	  redirect_url: https://live.example.org
//	  sso_key: secret
//	  remote_auth_types: [google]
//	providers:
//	  - name: google
//	    type: oidc
//	    preset: google
//	    enabled: true
//
// MULTIPASS_SSO_KEY, MULTIPASS_REDIRECT_URL, MULTIPASS_REDIRECT_PAGE_URL,
// MULTIPASS_HELP_URL, MULTIPASS_CONFIRMATION_URL,
// MULTIPASS_REMEMBER_ME_DURATION and MULTIPASS_REMOTE_AUTH_TYPES override
// the file.
//
// Watch reloads the file when it changes; the server swaps the new login
// options into the dispatcher.
package config
