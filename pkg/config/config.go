// Package config loads application configuration from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string
	LogLevel string

	// Database: SQLite file by default, Postgres when DATABASE_URL is set.
	SQLitePath  string
	DatabaseURL string

	// OAuth (Google provider)
	OAuthClientID     string
	OAuthClientSecret string
	OAuthAuthURL      string
	OAuthTokenURL     string
	OAuthRedirectURL  string

	// CalDAV provider
	CalDAVURL      string
	CalDAVUsername string
	CalDAVPassword string
	CalDAVPath     string

	// Sync
	SyncInterval  time.Duration
	BatchSize     int
	BatchDelay    time.Duration
	WatchDebounce time.Duration
}

// Load loads configuration from environment variables, reading a .env file
// first when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("NOTESYNC_LOG_LEVEL", "info"),

		SQLitePath:  getEnv("NOTESYNC_DB", defaultSQLitePath()),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		OAuthClientID:     getEnv("NOTESYNC_OAUTH_CLIENT_ID", ""),
		OAuthClientSecret: getEnv("NOTESYNC_OAUTH_CLIENT_SECRET", ""),
		OAuthAuthURL:      getEnv("NOTESYNC_OAUTH_AUTH_URL", "https://accounts.google.com/o/oauth2/auth"),
		OAuthTokenURL:     getEnv("NOTESYNC_OAUTH_TOKEN_URL", "https://oauth2.googleapis.com/token"),
		OAuthRedirectURL:  getEnv("NOTESYNC_OAUTH_REDIRECT_URL", "urn:ietf:wg:oauth:2.0:oob"),

		CalDAVURL:      getEnv("NOTESYNC_CALDAV_URL", ""),
		CalDAVUsername: getEnv("NOTESYNC_CALDAV_USERNAME", ""),
		CalDAVPassword: getEnv("NOTESYNC_CALDAV_PASSWORD", ""),
		CalDAVPath:     getEnv("NOTESYNC_CALDAV_PATH", ""),

		SyncInterval:  getDurationEnv("NOTESYNC_SYNC_INTERVAL", 15*time.Minute),
		BatchSize:     getIntEnv("NOTESYNC_BATCH_SIZE", 5),
		BatchDelay:    getDurationEnv("NOTESYNC_BATCH_DELAY", 500*time.Millisecond),
		WatchDebounce: getDurationEnv("NOTESYNC_WATCH_DEBOUNCE", 2*time.Second),
	}
	return cfg, nil
}

// UsePostgres reports whether a Postgres URL is configured.
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "notesync.db"
	}
	return filepath.Join(home, ".notesync", "notesync.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
