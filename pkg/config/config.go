package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Values accepted by NotifyOn
const (
	NotifyOnFailure    = "failure"
	NotifyOnCompletion = "completion"
	NotifyOnBoth       = "both"
)

// Card formats, mirrored from the notification package to keep config dependency-free
const (
	CardAdaptive  = "adaptive"
	CardConnector = "connector"
)

// Config holds all configuration for teams-notify
type Config struct {
	// Webhook settings
	WebhookURL string        `yaml:"webhook_url" env:"TEAMS_NOTIFY_WEBHOOK_URL"`
	CardFormat string        `yaml:"card_format" env:"TEAMS_NOTIFY_CARD_FORMAT"`
	Timeout    time.Duration `yaml:"timeout" env:"TEAMS_NOTIFY_TIMEOUT"`

	// Message templates; empty selects the built-in defaults
	ExceptionTemplate  string `yaml:"exception_template" env:"TEAMS_NOTIFY_EXCEPTION_TEMPLATE"`
	CompletionTemplate string `yaml:"completion_template" env:"TEAMS_NOTIFY_COMPLETION_TEMPLATE"`

	// Debug prints notifications to stdout instead of posting them
	Debug bool `yaml:"debug" env:"TEAMS_NOTIFY_DEBUG"`

	// Async dispatch
	AsyncDispatch   bool          `yaml:"async_dispatch" env:"TEAMS_NOTIFY_ASYNC"`
	AsyncWorkers    int           `yaml:"async_workers"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Logging
	LogLevel  string `yaml:"log_level" env:"TEAMS_NOTIFY_LOG_LEVEL"`
	LogFormat string `yaml:"log_format"`

	// Log file; empty logs to stderr. Rotation is "size" or "time".
	LogFile       string        `yaml:"log_file" env:"TEAMS_NOTIFY_LOG_FILE"`
	LogRotation   string        `yaml:"log_rotation"`
	LogMaxSizeMB  int           `yaml:"log_max_size_mb"`
	LogMaxBackups int           `yaml:"log_max_backups"`
	LogMaxAge     time.Duration `yaml:"log_max_age"`

	// MetricsTextfile, when set, receives Prometheus metrics in text format
	// after each run (node_exporter textfile collector)
	MetricsTextfile string `yaml:"metrics_textfile" env:"TEAMS_NOTIFY_METRICS_TEXTFILE"`

	// Optional Sentry reporting of failures
	SentryDSN         string `yaml:"sentry_dsn" env:"TEAMS_NOTIFY_SENTRY_DSN"`
	SentryEnvironment string `yaml:"sentry_environment"`

	// Command wrapper behaviour
	Quiet           bool   `yaml:"quiet" env:"TEAMS_NOTIFY_QUIET"`
	NotifyOn        string `yaml:"notify_on" env:"TEAMS_NOTIFY_ON"`
	OutputTailLines int    `yaml:"output_tail_lines" env:"TEAMS_NOTIFY_OUTPUT_TAIL_LINES"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		CardFormat:      CardAdaptive,
		Timeout:         10 * time.Second,
		AsyncWorkers:    4,
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        "info",
		LogFormat:       "console",
		NotifyOn:        NotifyOnFailure,
		OutputTailLines: 20,
	}
}

// Load loads configuration from file and environment. Overrides, such as
// command line flags, are applied last and take part in validation
func Load(overrides ...func(*Config)) (*Config, error) {
	cfg := DefaultConfig()

	// Try to load from config file
	configPath := getConfigPath()
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	for _, override := range overrides {
		override(cfg)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// getConfigPath returns the config file path
func getConfigPath() string {
	// Check for explicit config path
	if path := os.Getenv("TEAMS_NOTIFY_CONFIG"); path != "" {
		return path
	}

	// Check XDG config directory
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "teams-notify", "config.yaml")
	}

	// Fall back to home directory
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "teams-notify", "config.yaml")
	}

	return ""
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, path string) error {
	// #nosec G304 - The config file path comes from trusted sources (env var, flag or standard locations)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(cfg *Config) error {
	if url := os.Getenv("TEAMS_NOTIFY_WEBHOOK_URL"); url != "" {
		cfg.WebhookURL = url
	}

	if format := os.Getenv("TEAMS_NOTIFY_CARD_FORMAT"); format != "" {
		cfg.CardFormat = format
	}

	if timeout := os.Getenv("TEAMS_NOTIFY_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid TEAMS_NOTIFY_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}

	if tmpl := os.Getenv("TEAMS_NOTIFY_EXCEPTION_TEMPLATE"); tmpl != "" {
		cfg.ExceptionTemplate = tmpl
	}

	if tmpl := os.Getenv("TEAMS_NOTIFY_COMPLETION_TEMPLATE"); tmpl != "" {
		cfg.CompletionTemplate = tmpl
	}

	for _, b := range []struct {
		name string
		dst  *bool
	}{
		{"TEAMS_NOTIFY_DEBUG", &cfg.Debug},
		{"TEAMS_NOTIFY_ASYNC", &cfg.AsyncDispatch},
		{"TEAMS_NOTIFY_QUIET", &cfg.Quiet},
	} {
		if err := parseBoolEnv(b.name, b.dst); err != nil {
			return err
		}
	}

	if level := os.Getenv("TEAMS_NOTIFY_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if path := os.Getenv("TEAMS_NOTIFY_LOG_FILE"); path != "" {
		cfg.LogFile = path
	}

	if dsn := os.Getenv("TEAMS_NOTIFY_SENTRY_DSN"); dsn != "" {
		cfg.SentryDSN = dsn
	}

	if path := os.Getenv("TEAMS_NOTIFY_METRICS_TEXTFILE"); path != "" {
		cfg.MetricsTextfile = path
	}

	if on := os.Getenv("TEAMS_NOTIFY_ON"); on != "" {
		cfg.NotifyOn = strings.ToLower(strings.TrimSpace(on))
	}

	if lines := os.Getenv("TEAMS_NOTIFY_OUTPUT_TAIL_LINES"); lines != "" {
		n, err := strconv.Atoi(lines)
		if err != nil {
			return fmt.Errorf("invalid TEAMS_NOTIFY_OUTPUT_TAIL_LINES: %w", err)
		}
		cfg.OutputTailLines = n
	}

	return nil
}

func parseBoolEnv(name string, dst *bool) error {
	value := os.Getenv(name)
	if value == "" {
		return nil
	}
	switch value {
	case "true", "1", "yes":
		*dst = true
	case "false", "0", "no":
		*dst = false
	default:
		return fmt.Errorf("invalid %s value: %q (use true/false)", name, value)
	}
	return nil
}

// Validate validates the configuration
func (cfg *Config) Validate() error {
	if cfg.WebhookURL == "" && !cfg.Quiet {
		return fmt.Errorf("webhook_url is required when not in quiet mode")
	}

	if cfg.WebhookURL != "" &&
		!strings.HasPrefix(cfg.WebhookURL, "http://") &&
		!strings.HasPrefix(cfg.WebhookURL, "https://") {
		return fmt.Errorf("webhook_url must start with http:// or https://")
	}

	switch cfg.CardFormat {
	case "", CardAdaptive, CardConnector:
	default:
		return fmt.Errorf("card_format must be %q or %q, got %q", CardAdaptive, CardConnector, cfg.CardFormat)
	}

	switch cfg.NotifyOn {
	case "", NotifyOnFailure, NotifyOnCompletion, NotifyOnBoth:
	default:
		return fmt.Errorf("notify_on must be one of failure, completion, both; got %q", cfg.NotifyOn)
	}

	if cfg.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	if cfg.AsyncWorkers < 0 {
		return fmt.Errorf("async_workers must be non-negative")
	}

	switch cfg.LogRotation {
	case "", "size", "time":
	default:
		return fmt.Errorf("log_rotation must be size or time, got %q", cfg.LogRotation)
	}

	if cfg.OutputTailLines < 0 {
		return fmt.Errorf("output_tail_lines must be non-negative")
	}

	return nil
}
