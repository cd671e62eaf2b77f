package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/multipass/pkg/checkin"
	"github.com/platinummonkey/multipass/pkg/login"
	"github.com/platinummonkey/multipass/pkg/observability"
	"github.com/platinummonkey/multipass/pkg/session"
	"github.com/platinummonkey/multipass/pkg/sso"
	"github.com/platinummonkey/multipass/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Observability configuration
	Observability ObservabilityConfig

	Session SessionConfig
	Email   EmailConfig

	// Login and Providers come from the config file, with environment
	// overrides for the secrets
	Login     LoginConfig
	Providers []sso.ProviderConfig

	// File is the config file the login settings were read from
	File string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// BaseURL is the public root of this service, used for provider
	// callback URLs
	BaseURL string

	// CallTimeout bounds each store, provider and mailer call of a login
	CallTimeout time.Duration

	// LoginRateLimit is the number of login attempts a client may make per
	// LoginRateWindow; zero disables limiting
	LoginRateLimit  int
	LoginRateBurst  int
	LoginRateWindow time.Duration
	// TrustProxy takes the client address from X-Forwarded-For
	TrustProxy bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// SessionConfig holds session cookie and provider state settings
type SessionConfig struct {
	TTL          time.Duration
	CookieDomain string
	CookieSecure bool

	// StateTTL bounds how long a remote login may take
	StateTTL time.Duration
	// StateCacheSize sizes the in-memory state store used without Redis
	StateCacheSize int
}

// EmailConfig holds confirmation email settings
type EmailConfig struct {
	ResendAPIKey  string
	ResendBaseURL string
	From          string
	Subject       string
	TemplateFile  string
}

// LoginConfig is the login section of the config file
type LoginConfig struct {
	CheckInGroup int64              `yaml:"check_in_group"`
	Campus       int64              `yaml:"campus"`
	Schedules    []checkin.Schedule `yaml:"schedules"`

	RedirectURL     string `yaml:"redirect_url"`
	RedirectPageURL string `yaml:"redirect_page_url"`
	SSOKey          string `yaml:"sso_key"`

	ConfirmCaption   string `yaml:"confirm_caption"`
	LockedOutCaption string `yaml:"locked_out_caption"`

	// RemoteAuthTypes is the provider allow-list
	RemoteAuthTypes []string `yaml:"remote_auth_types"`

	HelpURL            string        `yaml:"help_url"`
	ConfirmationURL    string        `yaml:"confirmation_url"`
	NewAccountURL      string        `yaml:"new_account_url"`
	HideNewAccount     bool          `yaml:"hide_new_account"`
	NewAccountText     string        `yaml:"new_account_text"`
	PromptMessage      string        `yaml:"prompt_message"`
	RememberMeDuration time.Duration `yaml:"remember_me_duration"`

	OrganizationPhone string `yaml:"organization_phone"`
	OrganizationEmail string `yaml:"organization_email"`
}

// FileConfig is the layout of the YAML config file
type FileConfig struct {
	Login     LoginConfig          `yaml:"login"`
	Providers []sso.ProviderConfig `yaml:"providers"`
}

// LoadConfig loads configuration from environment variables and the
// optional file named by MULTIPASS_CONFIG_FILE
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Observability: loadObservabilityConfig(),
		Session:       loadSessionConfig(),
		Email:         loadEmailConfig(),
		File:          getEnv("MULTIPASS_CONFIG_FILE", ""),
	}

	if cfg.File != "" {
		fc, err := LoadFile(cfg.File)
		if err != nil {
			return nil, err
		}
		cfg.Login = fc.Login
		cfg.Providers = fc.Providers
	} else {
		cfg.Login.applyEnv()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile reads a YAML config file and applies the environment
// overrides to its login section
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	fc.Login.applyEnv()
	return &fc, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("MULTIPASS_HOST", "0.0.0.0"),
		Port:            getEnv("MULTIPASS_PORT", "8080"),
		ReadTimeout:     getEnvDuration("MULTIPASS_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("MULTIPASS_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("MULTIPASS_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("MULTIPASS_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("MULTIPASS_HEALTH_PORT", "9090"),
		BaseURL:         getEnv("MULTIPASS_BASE_URL", "http://localhost:8080"),
		CallTimeout:     getEnvDuration("MULTIPASS_CALL_TIMEOUT", 10*time.Second),
		LoginRateLimit:  getEnvInt("MULTIPASS_LOGIN_RATE_LIMIT", 10),
		LoginRateBurst:  getEnvInt("MULTIPASS_LOGIN_RATE_BURST", 5),
		LoginRateWindow: getEnvDuration("MULTIPASS_LOGIN_RATE_WINDOW", time.Minute),
		TrustProxy:      getEnvBool("MULTIPASS_TRUST_PROXY", false),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if dbURL := getEnv("MULTIPASS_DATABASE_URL", ""); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if maxConns := getEnvInt("MULTIPASS_DATABASE_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("MULTIPASS_DATABASE_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("MULTIPASS_DATABASE_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}

	// Redis config
	if redisURL := getEnv("MULTIPASS_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("MULTIPASS_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("MULTIPASS_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("MULTIPASS_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("MULTIPASS_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	return cfg
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("MULTIPASS_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("MULTIPASS_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("MULTIPASS_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("MULTIPASS_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("MULTIPASS_OTEL_SERVICE_NAME", "multipass"),
		OTelServiceVersion: getEnv("MULTIPASS_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("MULTIPASS_OTEL_INSECURE", true),
	}
}

func loadSessionConfig() SessionConfig {
	return SessionConfig{
		TTL:            getEnvDuration("MULTIPASS_SESSION_TTL", session.DefaultTTL),
		CookieDomain:   getEnv("MULTIPASS_COOKIE_DOMAIN", ""),
		CookieSecure:   getEnvBool("MULTIPASS_COOKIE_SECURE", true),
		StateTTL:       getEnvDuration("MULTIPASS_STATE_TTL", 10*time.Minute),
		StateCacheSize: getEnvInt("MULTIPASS_STATE_CACHE_SIZE", 10000),
	}
}

func loadEmailConfig() EmailConfig {
	return EmailConfig{
		ResendAPIKey:  getEnv("MULTIPASS_RESEND_API_KEY", ""),
		ResendBaseURL: getEnv("MULTIPASS_RESEND_BASE_URL", ""),
		From:          getEnv("MULTIPASS_EMAIL_FROM", ""),
		Subject:       getEnv("MULTIPASS_EMAIL_SUBJECT", ""),
		TemplateFile:  getEnv("MULTIPASS_EMAIL_TEMPLATE", ""),
	}
}

// applyEnv lets the environment override secrets and URLs of the file
func (l *LoginConfig) applyEnv() {
	l.SSOKey = getEnv("MULTIPASS_SSO_KEY", l.SSOKey)
	l.RedirectURL = getEnv("MULTIPASS_REDIRECT_URL", l.RedirectURL)
	l.RedirectPageURL = getEnv("MULTIPASS_REDIRECT_PAGE_URL", l.RedirectPageURL)
	l.HelpURL = getEnv("MULTIPASS_HELP_URL", l.HelpURL)
	l.ConfirmationURL = getEnv("MULTIPASS_CONFIRMATION_URL", l.ConfirmationURL)
	l.RememberMeDuration = getEnvDuration("MULTIPASS_REMEMBER_ME_DURATION", l.RememberMeDuration)
	if types := getEnv("MULTIPASS_REMOTE_AUTH_TYPES", ""); types != "" {
		l.RemoteAuthTypes = splitList(types)
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if u, err := url.Parse(c.Server.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base URL must be absolute: %q", c.Server.BaseURL)
	}
	if c.Server.LoginRateLimit < 0 || c.Server.LoginRateBurst < 0 {
		return fmt.Errorf("login rate limit must not be negative")
	}

	if _, _, err := storage.ParseDatabaseURL(c.Storage.DatabaseURL); err != nil {
		return err
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	if c.Email.ResendAPIKey != "" && c.Email.From == "" {
		return fmt.Errorf("email sender is required when a Resend API key is set")
	}

	if err := c.Login.Validate(); err != nil {
		return err
	}
	return validateProviders(c.Providers)
}

// Validate checks the login settings and compiles the check-in schedules
func (l *LoginConfig) Validate() error {
	if l.RememberMeDuration < 0 {
		return fmt.Errorf("remember_me_duration must not be negative")
	}
	if err := checkin.CompileAll(l.Schedules); err != nil {
		return err
	}
	return l.Options(nil).Validate()
}

// CheckIn returns the attendance settings
func (l *LoginConfig) CheckIn() checkin.Settings {
	return checkin.Settings{
		GroupID:   l.CheckInGroup,
		CampusID:  l.Campus,
		Schedules: l.Schedules,
	}
}

// Options converts the login section into a dispatcher snapshot
func (l *LoginConfig) Options(registry *sso.Registry) *login.Options {
	return &login.Options{
		RedirectURL:       l.RedirectURL,
		SSOKey:            l.SSOKey,
		RedirectPageURL:   l.RedirectPageURL,
		HelpURL:           l.HelpURL,
		ConfirmationURL:   l.ConfirmationURL,
		NewAccountURL:     l.NewAccountURL,
		HideNewAccount:    l.HideNewAccount,
		NewAccountText:    l.NewAccountText,
		PromptMessage:     l.PromptMessage,
		ConfirmCaption:    l.ConfirmCaption,
		LockedOutCaption:  l.LockedOutCaption,
		OrganizationPhone: l.OrganizationPhone,
		OrganizationEmail: l.OrganizationEmail,
		CheckIn:           l.CheckIn(),
		Registry:          registry,
	}
}

func validateProviders(providers []sso.ProviderConfig) error {
	seen := make(map[string]bool, len(providers))
	for _, p := range providers {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			return errors.New("provider name is required")
		}
		if seen[name] {
			return fmt.Errorf("duplicate provider %q", p.Name)
		}
		seen[name] = true
	}
	return nil
}

// parseLogLevel parses a log level string, falling back to info
func parseLogLevel(level string) observability.LogLevel {
	parsed, err := observability.ParseLogLevel(level)
	if err != nil {
		return observability.InfoLevel
	}
	return parsed
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
