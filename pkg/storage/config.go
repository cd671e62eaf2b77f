package storage

import "time"

// Config holds database and Redis connection settings
type Config struct {
	DatabaseURL     string
	MaxConns        int
	MinConns        int
	Timeout         time.Duration
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int
}

// DefaultConfig returns the connection settings used when nothing is
// configured.
func DefaultConfig() Config {
	return Config{
		DatabaseURL:     "sqlite://multipass.db",
		MaxConns:        20,
		MinConns:        2,
		Timeout:         5 * time.Second,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		RedisDB:         -1,
	}
}
