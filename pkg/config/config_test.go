package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnvVars clears all notesync-related environment variables.
func clearEnvVars() {
	envVars := []string{
		"APP_ENV", "NOTESYNC_LOG_LEVEL", "NOTESYNC_DB", "DATABASE_URL",
		"NOTESYNC_OAUTH_CLIENT_ID", "NOTESYNC_OAUTH_CLIENT_SECRET",
		"NOTESYNC_OAUTH_AUTH_URL", "NOTESYNC_OAUTH_TOKEN_URL", "NOTESYNC_OAUTH_REDIRECT_URL",
		"NOTESYNC_CALDAV_URL", "NOTESYNC_CALDAV_USERNAME", "NOTESYNC_CALDAV_PASSWORD",
		"NOTESYNC_CALDAV_PATH",
		"NOTESYNC_SYNC_INTERVAL", "NOTESYNC_BATCH_SIZE", "NOTESYNC_BATCH_DELAY",
		"NOTESYNC_WATCH_DEBOUNCE",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.IsDevelopment())

	assert.NotEmpty(t, cfg.SQLitePath)
	assert.Equal(t, "", cfg.DatabaseURL)
	assert.False(t, cfg.UsePostgres())

	assert.Equal(t, "https://accounts.google.com/o/oauth2/auth", cfg.OAuthAuthURL)
	assert.Equal(t, "https://oauth2.googleapis.com/token", cfg.OAuthTokenURL)
	assert.Equal(t, "urn:ietf:wg:oauth:2.0:oob", cfg.OAuthRedirectURL)

	assert.Equal(t, 15*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 5, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchDelay)
	assert.Equal(t, 2*time.Second, cfg.WatchDebounce)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	t.Setenv("APP_ENV", "production")
	t.Setenv("NOTESYNC_DB", "/tmp/custom.db")
	t.Setenv("DATABASE_URL", "postgres://localhost/notesync")
	t.Setenv("NOTESYNC_SYNC_INTERVAL", "5m")
	t.Setenv("NOTESYNC_BATCH_SIZE", "10")
	t.Setenv("NOTESYNC_BATCH_DELAY", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.AppEnv)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "/tmp/custom.db", cfg.SQLitePath)
	assert.True(t, cfg.UsePostgres())
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.BatchDelay)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	t.Setenv("NOTESYNC_BATCH_SIZE", "not-a-number")
	t.Setenv("NOTESYNC_SYNC_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.BatchSize)
	assert.Equal(t, 15*time.Minute, cfg.SyncInterval)
}
