package config

import (
	"testing"
	"time"

	"github.com/roamlog/roamlog/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_FullConfig(t *testing.T) {
	t.Setenv("APP_VERSION", "3")
	t.Setenv("STORAGE_DSN", "/tmp/roamlog.db")
	t.Setenv("REMOTE_BASE_URL", "https://api.roamlog.test")
	t.Setenv("REMOTE_REQUEST_TIMEOUT", "20s")
	t.Setenv("CACHE_APP_SHELL", "/index.html,/app.js,/styles.css")
	t.Setenv("SYNC_RETRY_BASE_INTERVAL", "3s")
	t.Setenv("SYNC_BATCH_SIZE", "25")
	t.Setenv("PRIVACY_LEVEL", "minimal")
	t.Setenv("SECURITY_ALLOWED_ORIGINS", "https://roamlog.test")

	cfg := new(Config)
	require.NoError(t, parseEnv(cfg))

	assert.Equal(t, "3", cfg.App.Version)
	assert.Equal(t, "/tmp/roamlog.db", cfg.Storage.DSN)
	assert.Equal(t, "https://api.roamlog.test", cfg.Remote.BaseURL)
	assert.Equal(t, 20*time.Second, cfg.Remote.RequestTimeout)
	assert.Equal(t, []string{"/index.html", "/app.js", "/styles.css"}, cfg.Cache.AppShell)
	assert.Equal(t, 3*time.Second, cfg.Sync.RetryBaseInterval)
	assert.Equal(t, 25, cfg.Sync.BatchSize)
	assert.Equal(t, models.PrivacyMinimal, cfg.Privacy.Level)
	assert.Equal(t, []string{"https://roamlog.test"}, cfg.Security.AllowedOrigins)
}

func TestParseEnv_EmptyEnvironmentYieldsZeroConfig(t *testing.T) {
	cfg := new(Config)
	require.NoError(t, parseEnv(cfg))

	assert.Empty(t, cfg.Remote.BaseURL)
	assert.Zero(t, cfg.Sync.BatchSize)
}

func TestParseEnv_InvalidDuration(t *testing.T) {
	t.Setenv("REMOTE_REQUEST_TIMEOUT", "not-a-duration")

	cfg := new(Config)
	assert.Error(t, parseEnv(cfg))
}
