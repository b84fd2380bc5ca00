package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TRIAGEWATCH_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.APIBaseURL)
	assert.Equal(t, "ws://localhost:5000/ws", cfg.PushURL)
	assert.Equal(t, 8090, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 5, cfg.RecentWindowSize)
	assert.Equal(t, 5*time.Second, cfg.NotificationTTL)
	assert.False(t, cfg.Export.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TRIAGEWATCH_DATA_DIR", t.TempDir())
	t.Setenv("TRIAGE_API_URL", "http://triage.internal:9000")
	t.Setenv("RECONNECT_DELAY_MS", "250")
	t.Setenv("RECENT_WINDOW_SIZE", "10")
	t.Setenv("EXPORT_BUCKET", "dashboard-exports")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://triage.internal:9000", cfg.APIBaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.ReconnectDelay)
	assert.Equal(t, 10, cfg.RecentWindowSize)
	assert.True(t, cfg.Export.Enabled())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := &Config{RecentWindowSize: 0, ReconnectDelay: time.Second, PollInterval: time.Second}
	assert.Error(t, cfg.Validate())

	cfg = &Config{RecentWindowSize: 5, ReconnectDelay: 0, PollInterval: time.Second}
	assert.Error(t, cfg.Validate())

	cfg = &Config{RecentWindowSize: 5, ReconnectDelay: time.Second, PollInterval: time.Second}
	assert.NoError(t, cfg.Validate())
}
