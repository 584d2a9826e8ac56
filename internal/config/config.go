// ABOUTME: Configuration loading and parsing for helpdesk
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Defaults applied to fields left empty in the file.
const (
	DefaultMaxTurns            = 50
	DefaultEscalationThreshold = 3
	DefaultRetention           = 30 * time.Minute
	DefaultSweepInterval       = time.Minute
	DefaultNotifyTimeout       = 5 * time.Second
	DefaultReportSchedule      = "@every 5m"
)

// Config represents the complete helpdesk configuration
type Config struct {
	Conversation ConversationConfig `yaml:"conversation" toml:"conversation"`
	Sessions     SessionsConfig     `yaml:"sessions" toml:"sessions"`
	Escalation   EscalationConfig   `yaml:"escalation" toml:"escalation"`
	Archive      ArchiveConfig      `yaml:"archive" toml:"archive"`
	Reporting    ReportingConfig    `yaml:"reporting" toml:"reporting"`
	Logging      LoggingConfig      `yaml:"logging" toml:"logging"`
}

// ConversationConfig holds the turn limits
type ConversationConfig struct {
	MaxTurns            int `yaml:"max_turns" toml:"max_turns"`
	EscalationThreshold int `yaml:"escalation_threshold" toml:"escalation_threshold"`
}

// SessionsConfig holds session retention timing
type SessionsConfig struct {
	Retention     time.Duration `yaml:"-" toml:"-"`
	SweepInterval time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	RetentionRaw     string `yaml:"retention" toml:"retention"`
	SweepIntervalRaw string `yaml:"sweep_interval" toml:"sweep_interval"`
}

// EscalationConfig holds notification settings for new tickets
type EscalationConfig struct {
	NotifyTimeout time.Duration `yaml:"-" toml:"-"`
	WebhookURL    string        `yaml:"webhook_url" toml:"webhook_url"`

	NotifyTimeoutRaw string `yaml:"notify_timeout" toml:"notify_timeout"`
}

// ArchiveConfig holds the SQLite archive location. Empty disables archiving.
type ArchiveConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// ReportingConfig holds the statistics report schedule. Empty disables it.
type ReportingConfig struct {
	Schedule string `yaml:"schedule" toml:"schedule"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns a Config with every default filled in.
func Default() *Config {
	cfg := &Config{}
	cfg.Reporting.Schedule = DefaultReportSchedule
	cfg.applyDefaults()
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(string(data), strings.EqualFold(filepath.Ext(path), ".toml"))
}

// Parse decodes configuration text, then applies defaults and validates.
func Parse(text string, isTOML bool) (*Config, error) {
	// Expand environment variables in the raw content
	expanded := expandEnvVars(text)

	// A reporting section left out keeps the default schedule, while an
	// explicit empty schedule disables reporting.
	cfg := Config{Reporting: ReportingConfig{Schedule: DefaultReportSchedule}}
	if isTOML {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills zero-valued fields. Negative values are left for Validate.
func (c *Config) applyDefaults() {
	if c.Conversation.MaxTurns == 0 {
		c.Conversation.MaxTurns = DefaultMaxTurns
	}
	if c.Conversation.EscalationThreshold == 0 {
		c.Conversation.EscalationThreshold = DefaultEscalationThreshold
	}
	if c.Sessions.Retention == 0 {
		c.Sessions.Retention = DefaultRetention
	}
	if c.Sessions.SweepInterval == 0 {
		c.Sessions.SweepInterval = DefaultSweepInterval
	}
	if c.Escalation.NotifyTimeout == 0 {
		c.Escalation.NotifyTimeout = DefaultNotifyTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all configuration fields are valid.
// Returns an error wrapping ErrInvalidConfig for the first failure encountered.
func (c *Config) Validate() error {
	if c.Conversation.MaxTurns <= 0 {
		return fmt.Errorf("%w: conversation.max_turns must be greater than 0", ErrInvalidConfig)
	}
	if c.Conversation.EscalationThreshold <= 0 {
		return fmt.Errorf("%w: conversation.escalation_threshold must be greater than 0", ErrInvalidConfig)
	}
	if c.Sessions.Retention < 0 {
		return fmt.Errorf("%w: sessions.retention must not be negative", ErrInvalidConfig)
	}
	if c.Sessions.SweepInterval < 0 {
		return fmt.Errorf("%w: sessions.sweep_interval must not be negative", ErrInvalidConfig)
	}
	if c.Escalation.NotifyTimeout < 0 {
		return fmt.Errorf("%w: escalation.notify_timeout must not be negative", ErrInvalidConfig)
	}
	if u := c.Escalation.WebhookURL; u != "" && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return fmt.Errorf("%w: escalation.webhook_url must use http or https scheme", ErrInvalidConfig)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level %q is not one of debug, info, warn, error", ErrInvalidConfig, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: logging.format %q is not text or json", ErrInvalidConfig, c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"sessions.retention", cfg.Sessions.RetentionRaw, &cfg.Sessions.Retention},
		{"sessions.sweep_interval", cfg.Sessions.SweepIntervalRaw, &cfg.Sessions.SweepInterval},
		{"escalation.notify_timeout", cfg.Escalation.NotifyTimeoutRaw, &cfg.Escalation.NotifyTimeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}

// Path returns the config file to use.
// Priority: flag value > HELPDESK_CONFIG env var > XDG_CONFIG_HOME/helpdesk/config.yaml > ~/.config/helpdesk/config.yaml
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPath := os.Getenv("HELPDESK_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "helpdesk", "config.yaml")
}
