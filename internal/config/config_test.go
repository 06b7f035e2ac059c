package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigParser_Defaults(t *testing.T) {
	t.Setenv(TokenEnv, "")
	result, err := LoadFrom("/nonexistent/path/config.toml")
	require.NoError(t, err, "missing config file is not an error")

	cfg := result.Config
	assert.Equal(t, "http://localhost:4000/api", cfg.Backend.BaseURL)
	assert.Equal(t, 10, cfg.Backend.TimeoutSeconds)
	assert.Equal(t, "http://localhost:4000", cfg.Push.URL)
	assert.Equal(t, "new-alert", cfg.Push.Event)
	assert.True(t, cfg.Push.Enabled)
	assert.Equal(t, 15, cfg.Poll.IntervalSeconds)
	assert.True(t, cfg.Poll.Live)
	assert.Equal(t, 8000, cfg.Alerts.IdleThresholdMS)
	assert.False(t, cfg.Alerts.Notifications.SystemNotify)
	assert.Equal(t, 200, cfg.Display.ActivityBufferSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, result.Warnings)
}

func TestConfigParser_PartialOverride(t *testing.T) {
	result, err := LoadFromString(`
[poll]
interval_seconds = 30

[alerts]
idle_threshold_ms = 5000

[alerts.notifications]
system_notify = true
`)
	require.NoError(t, err)

	cfg := result.Config
	assert.Equal(t, 30, cfg.Poll.IntervalSeconds)
	assert.True(t, cfg.Poll.Live, "keys absent from the file keep their defaults")
	assert.Equal(t, 5000, cfg.Alerts.IdleThresholdMS)
	assert.True(t, cfg.Alerts.Notifications.SystemNotify)
	assert.Equal(t, "new-alert", cfg.Push.Event)
}

func TestConfigParser_ExplicitFalse(t *testing.T) {
	result, err := LoadFromString(`
[push]
enabled = false

[poll]
live = false
`)
	require.NoError(t, err)
	assert.False(t, result.Config.Push.Enabled)
	assert.False(t, result.Config.Poll.Live)
}

func TestConfigParser_UnknownKeysWarn(t *testing.T) {
	result, err := LoadFromString(`
[mystery]
x = 1

[poll]
interval_seconds = 20
bogus = true
`)
	require.NoError(t, err)
	assert.Contains(t, result.Warnings, `unknown config key: "mystery"`)
	assert.Contains(t, result.Warnings, `unknown config key: "poll.bogus"`)
}

func TestConfigParser_Validation(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"zero interval", "[poll]\ninterval_seconds = 0", "poll interval_seconds"},
		{"bad base url", "[backend]\nbase_url = \"ftp://x\"", "base_url"},
		{"bad push url", "[push]\nurl = \"tcp://x\"", "push url"},
		{"empty event", "[push]\nevent = \"\"", "push event"},
		{"zero idle", "[alerts]\nidle_threshold_ms = 0", "idle_threshold_ms"},
		{"bad level", "[logging]\nlevel = \"loud\"", "logging level"},
		{"zero buffer", "[display]\nactivity_buffer_size = 0", "activity_buffer_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromString(tt.data)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfigParser_DisabledPushSkipsURLCheck(t *testing.T) {
	_, err := LoadFromString("[push]\nenabled = false\nurl = \"\"")
	assert.NoError(t, err)
}

func TestConfigParser_InvalidTOML(t *testing.T) {
	_, err := LoadFromString("[poll\ninterval_seconds = ")
	assert.Error(t, err)
}

func TestConfigParser_FileAndTokenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[backend]\ntoken = \"from-file\"\n"), 0o600))

	t.Setenv(TokenEnv, "")
	result, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", result.Config.Backend.Token)

	t.Setenv(TokenEnv, "from-env")
	result, err = LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", result.Config.Backend.Token)
}
