package config

import (
	"errors"
	"log/slog"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: identity provider and session configuration
//   - profile.go: backend profile API configuration
//   - database.go: audit database and profile cache configuration
//   - http.go: HTTP server configuration
//   - observability.go: metrics configuration
type AppConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Auth    AuthConfig
	Profile ProfileConfig `envPrefix:"PROFILE_"`

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP HTTPConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Auth.Sanitize()
	c.Profile.Sanitize()
	c.Postgres.Sanitize()
	c.Redis.Sanitize()
	c.HTTP.Sanitize()
	c.Observability.Sanitize()
}

// Validate reports configuration that cannot work. Call after Sanitize.
func (c *AppConfig) Validate() error {
	return errors.Join(
		c.Auth.Validate(),
		c.Profile.Validate(),
		c.HTTP.Validate(),
	)
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
