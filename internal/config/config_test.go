package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, 30000, cfg.Session.DefaultTimeoutMs)
	assert.Equal(t, 100, cfg.Session.PollIntervalMs)
	assert.Equal(t, 100, cfg.Session.HistoryLimit)

	assert.Equal(t, 120, cfg.Terminal.Cols)
	assert.Equal(t, 30, cfg.Terminal.Rows)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	os.Setenv("PORT", "9100")
	os.Setenv("SESSION_DEFAULT_TIMEOUT_MS", "5000")
	defer os.Unsetenv("PORT")
	defer os.Unsetenv("SESSION_DEFAULT_TIMEOUT_MS")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, 5000, cfg.Session.DefaultTimeoutMs)
	// Unset values fall back to defaults
	assert.Equal(t, 100, cfg.Session.PollIntervalMs)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.NotEmpty(t, cfg.Server.Port)
}
