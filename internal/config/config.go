package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
)

// TokenEnv overrides backend.token when set.
const TokenEnv = "ALERT_TOP_TOKEN"

type Config struct {
	Backend BackendConfig `toml:"backend"`
	Push    PushConfig    `toml:"push"`
	Poll    PollConfig    `toml:"poll"`
	Alerts  AlertsConfig  `toml:"alerts"`
	Display DisplayConfig `toml:"display"`
	Logging LoggingConfig `toml:"logging"`
}

type BackendConfig struct {
	BaseURL                string `toml:"base_url"`
	Token                  string `toml:"token"`
	TimeoutSeconds         int    `toml:"timeout_seconds"`
	BreakerFailures        int    `toml:"breaker_failures"`
	BreakerCooldownSeconds int    `toml:"breaker_cooldown_seconds"`
}

type PushConfig struct {
	URL              string `toml:"url"`
	Event            string `toml:"event"`
	Enabled          bool   `toml:"enabled"`
	ReconnectSeconds int    `toml:"reconnect_seconds"`
}

type PollConfig struct {
	IntervalSeconds int  `toml:"interval_seconds"`
	Live            bool `toml:"live"`
}

type AlertsConfig struct {
	IdleThresholdMS int                `toml:"idle_threshold_ms"`
	Notifications   NotificationConfig `toml:"notifications"`
}

type NotificationConfig struct {
	SystemNotify bool `toml:"system_notify"`
}

type DisplayConfig struct {
	ActivityBufferSize int `toml:"activity_buffer_size"`
	RefreshRateMS      int `toml:"refresh_rate_ms"`
	ToastSeconds       int `toml:"toast_seconds"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type LoadResult struct {
	Config   Config
	Warnings []string
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL:                "http://localhost:4000/api",
			TimeoutSeconds:         10,
			BreakerFailures:        5,
			BreakerCooldownSeconds: 30,
		},
		Push: PushConfig{
			URL:              "http://localhost:4000",
			Event:            "new-alert",
			Enabled:          true,
			ReconnectSeconds: 5,
		},
		Poll: PollConfig{
			IntervalSeconds: 15,
			Live:            true,
		},
		Alerts: AlertsConfig{
			IdleThresholdMS: 8000,
		},
		Display: DisplayConfig{
			ActivityBufferSize: 200,
			RefreshRateMS:      1000,
			ToastSeconds:       6,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.config/alert-top/config.toml, or "" when the home
// directory cannot be determined.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "alert-top", "config.toml")
}

// Load reads the config from the default path.
func Load() (*LoadResult, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom reads the config at path. A missing file yields the defaults.
// The token environment variable is applied after the file.
func LoadFrom(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "reading config file")
	}

	result, err := parse(string(data))
	if err != nil {
		return nil, errors.Wrap(err, "parsing config file")
	}
	if tok := os.Getenv(TokenEnv); tok != "" {
		result.Config.Backend.Token = tok
	}
	return result, nil
}

// LoadFromString parses config text on top of the defaults.
func LoadFromString(data string) (*LoadResult, error) {
	result, err := parse(data)
	if err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	return result, nil
}

// parse decodes data over the defaults so only keys present in the file
// override them, then validates the result.
func parse(data string) (*LoadResult, error) {
	result := &LoadResult{Config: DefaultConfig()}
	if strings.TrimSpace(data) == "" {
		return result, nil
	}

	md, err := toml.Decode(data, &result.Config)
	if err != nil {
		return nil, err
	}
	for _, key := range md.Undecoded() {
		result.Warnings = append(result.Warnings, fmt.Sprintf("unknown config key: %q", key.String()))
	}

	if err := validate(&result.Config); err != nil {
		return nil, err
	}
	return result, nil
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.Backend.BaseURL == "" {
		errs = append(errs, "backend base_url must be set")
	} else if !hasScheme(cfg.Backend.BaseURL, "http://", "https://") {
		errs = append(errs, fmt.Sprintf("backend base_url must be http(s), got %q", cfg.Backend.BaseURL))
	}
	if cfg.Backend.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Sprintf("backend timeout_seconds must be positive, got %d", cfg.Backend.TimeoutSeconds))
	}
	if cfg.Backend.BreakerFailures < 0 {
		errs = append(errs, fmt.Sprintf("backend breaker_failures must not be negative, got %d", cfg.Backend.BreakerFailures))
	}
	if cfg.Backend.BreakerCooldownSeconds < 1 {
		errs = append(errs, fmt.Sprintf("backend breaker_cooldown_seconds must be positive, got %d", cfg.Backend.BreakerCooldownSeconds))
	}

	if cfg.Push.Enabled {
		if !hasScheme(cfg.Push.URL, "http://", "https://", "ws://", "wss://") {
			errs = append(errs, fmt.Sprintf("push url must be http(s) or ws(s), got %q", cfg.Push.URL))
		}
		if cfg.Push.Event == "" {
			errs = append(errs, "push event must be set")
		}
	}
	if cfg.Push.ReconnectSeconds < 1 {
		errs = append(errs, fmt.Sprintf("push reconnect_seconds must be positive, got %d", cfg.Push.ReconnectSeconds))
	}

	if cfg.Poll.IntervalSeconds < 1 {
		errs = append(errs, fmt.Sprintf("poll interval_seconds must be positive, got %d", cfg.Poll.IntervalSeconds))
	}
	if cfg.Alerts.IdleThresholdMS < 1 {
		errs = append(errs, fmt.Sprintf("idle_threshold_ms must be positive, got %d", cfg.Alerts.IdleThresholdMS))
	}

	if cfg.Display.ActivityBufferSize < 1 {
		errs = append(errs, fmt.Sprintf("activity_buffer_size must be positive, got %d", cfg.Display.ActivityBufferSize))
	}
	if cfg.Display.RefreshRateMS < 1 {
		errs = append(errs, fmt.Sprintf("refresh_rate_ms must be positive, got %d", cfg.Display.RefreshRateMS))
	}
	if cfg.Display.ToastSeconds < 1 {
		errs = append(errs, fmt.Sprintf("toast_seconds must be positive, got %d", cfg.Display.ToastSeconds))
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging level must be debug, info, warn or error, got %q", cfg.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation error: %s", strings.Join(errs, "; "))
	}
	return nil
}

func hasScheme(u string, schemes ...string) bool {
	for _, s := range schemes {
		if strings.HasPrefix(u, s) {
			return true
		}
	}
	return false
}
