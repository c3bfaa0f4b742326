package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override,
// e.g. CAMPUS_NOTIFIER_GATEWAY_BASE_URL.
const EnvPrefix = "CAMPUS_NOTIFIER"

// GatewayConfig holds the notification gateway connection settings.
type GatewayConfig struct {
	// BaseURL is the root URL of the notification service.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Timeout bounds a single HTTP request.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// MaxRetries is the number of retries on 429 and 5xx gateway responses.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// RateLimit is the sustained requests per second the client may issue.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// PollConfig controls the background unread-count refresh.
type PollConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	PageSize int           `mapstructure:"page_size" yaml:"page_size"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`

	// File receives log output. The terminal UI owns stdout, so logs
	// always go to a rotated file when running the TUI.
	File string `mapstructure:"file" yaml:"file"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enable      bool    `mapstructure:"enable" yaml:"enable"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}

// DevGatewayConfig configures the local development gateway.
type DevGatewayConfig struct {
	Addr   string `mapstructure:"addr" yaml:"addr"`
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Gateway    GatewayConfig    `mapstructure:"gateway" yaml:"gateway"`
	Poll       PollConfig       `mapstructure:"poll" yaml:"poll"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry" yaml:"telemetry"`
	DevGateway DevGatewayConfig `mapstructure:"devgateway" yaml:"devgateway"`
	Display    DisplayConfig    `mapstructure:"display" yaml:"display"`
}

// ConfigDir returns ~/.config/campus-notifier, or "." if the home
// directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "campus-notifier")
}

// DefaultConfigPath returns the default path for the configuration file.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// setDefaults registers every default on v so missing keys resolve to
// sensible values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.base_url", "http://localhost:8085/api")
	v.SetDefault("gateway.timeout", "15s")
	v.SetDefault("gateway.max_retries", 3)
	v.SetDefault("gateway.rate_limit", 5.0)
	v.SetDefault("gateway.rate_burst", 10)

	v.SetDefault("poll.interval", "60s")
	v.SetDefault("poll.page_size", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.file", filepath.Join(ConfigDir(), "notifier.log"))

	v.SetDefault("metrics.addr", "")

	v.SetDefault("telemetry.enable", false)
	v.SetDefault("telemetry.endpoint", "localhost:4318")
	v.SetDefault("telemetry.sample_ratio", 1.0)

	v.SetDefault("devgateway.addr", ":8085")
	v.SetDefault("devgateway.db_path", filepath.Join(ConfigDir(), "devgateway.db"))

	v.SetDefault("display.theme", "default")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file is not an error: defaults and environment overrides
// still apply.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		_, isPathErr := err.(*os.PathError)
		if !isPathErr && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = 60 * time.Second
	}
	if cfg.Poll.PageSize <= 0 {
		cfg.Poll.PageSize = 10
	}
	cfg.Gateway.BaseURL = strings.TrimRight(cfg.Gateway.BaseURL, "/")

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("gateway", map[string]any{
		"base_url":    cfg.Gateway.BaseURL,
		"timeout":     cfg.Gateway.Timeout.String(),
		"max_retries": cfg.Gateway.MaxRetries,
		"rate_limit":  cfg.Gateway.RateLimit,
		"rate_burst":  cfg.Gateway.RateBurst,
	})
	v.Set("poll", map[string]any{
		"interval":  cfg.Poll.Interval.String(),
		"page_size": cfg.Poll.PageSize,
	})
	v.Set("log", cfg.Log)
	v.Set("metrics", cfg.Metrics)
	v.Set("telemetry", cfg.Telemetry)
	v.Set("devgateway", cfg.DevGateway)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
