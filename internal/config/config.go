// Package config loads runtime settings from the environment, with a
// best-effort .env file for local development.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the subsystem. The OAuth triple may
// legitimately be empty: purely local usage (views, CRUD) works without it,
// and the credential manager reports the gap as a ConfigurationError the
// moment a sync is attempted.
type Config struct {
	DBPath string

	GoogleClientID     string
	GoogleClientSecret string
	RedirectURL        string

	Timezone string
	LogLevel string
}

// Load reads configuration from a .env file (if present) and the
// environment, applying defaults.
func Load() *Config {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	return &Config{
		DBPath:             getEnvWithDefault("AUDSYNC_DB_PATH", "audsync.db"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURL:        getEnvWithDefault("OAUTH_REDIRECT_URL", "http://127.0.0.1:8484/oauth/callback"),
		Timezone:           getEnvWithDefault("AUDSYNC_TIMEZONE", "America/Sao_Paulo"),
		LogLevel:           getEnvWithDefault("AUDSYNC_LOG_LEVEL", "info"),
	}
}

// Location resolves the configured business time zone. Hearing instants and
// remote event payloads are built in this zone; calendar grid arithmetic
// never uses it.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDSYNC_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SlogLevel maps the configured log level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnvWithDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
