// ABOUTME: Configuration loading and parsing for the channel watcher
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete, immutable configuration. It is built once at
// startup and passed into each component; nothing mutates it afterwards.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Filter    FilterConfig    `yaml:"filter"`
	Retention RetentionConfig `yaml:"retention"`
	Selection SelectionConfig `yaml:"selection"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig holds store configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// TelegramConfig holds the bot credentials and the notification target.
// An empty ChatID disables notification delivery.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`

	PollTimeout    time.Duration `yaml:"-"`
	PollTimeoutRaw string        `yaml:"poll_timeout"`
}

// FilterConfig holds the ingestion filter rules
type FilterConfig struct {
	ExcludeWords WordList `yaml:"exclude_words"`
	MinLength    int      `yaml:"min_length"`
}

// RetentionConfig holds the cleanup job settings
type RetentionConfig struct {
	Horizon         time.Duration `yaml:"-"`
	CleanupInterval time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	HorizonRaw         string `yaml:"horizon"`
	CleanupIntervalRaw string `yaml:"cleanup_interval"`
}

// SelectionConfig holds the selection cycle settings. An empty OpenAI
// API key disables classification: every cycle selects nothing.
type SelectionConfig struct {
	Criteria string       `yaml:"criteria"`
	OpenAI   OpenAIConfig `yaml:"openai"`

	Interval    time.Duration `yaml:"-"`
	IntervalRaw string        `yaml:"interval"`
}

// OpenAIConfig holds the classification backend settings
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`

	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WordList is a list of filter words. It unmarshals from a YAML
// sequence, a JSON array string, or a comma-separated string, so the
// same value can come from a file or a single environment variable.
type WordList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (w *WordList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*w = cleanWords(items)
		return nil
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*w = ParseWordList(s)
		return nil
	default:
		return fmt.Errorf("exclude_words must be a list or a string")
	}
}

// ParseWordList parses a JSON array or a comma-separated string into a
// word list. Blank entries are dropped.
func ParseWordList(text string) WordList {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var items []string
	if err := json.Unmarshal([]byte(text), &items); err == nil {
		return cleanWords(items)
	}

	return cleanWords(strings.Split(text, ","))
}

func cleanWords(items []string) WordList {
	var out WordList
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

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

// applyDefaults fills in the optional settings.
func applyDefaults(cfg *Config) {
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./telegram_messages.db"
	}
	if cfg.Telegram.PollTimeoutRaw == "" {
		cfg.Telegram.PollTimeoutRaw = "30s"
	}
	if cfg.Retention.HorizonRaw == "" {
		cfg.Retention.HorizonRaw = "48h"
	}
	if cfg.Retention.CleanupIntervalRaw == "" {
		cfg.Retention.CleanupIntervalRaw = "1h"
	}
	if cfg.Selection.IntervalRaw == "" {
		cfg.Selection.IntervalRaw = "2h"
	}
	if cfg.Selection.OpenAI.Model == "" {
		cfg.Selection.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.Selection.OpenAI.TimeoutRaw == "" {
		cfg.Selection.OpenAI.TimeoutRaw = "60s"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Retention.Horizon <= 0 {
		return fmt.Errorf("retention.horizon must be positive")
	}
	if c.Retention.CleanupInterval <= 0 {
		return fmt.Errorf("retention.cleanup_interval must be positive")
	}
	if c.Selection.Interval <= 0 {
		return fmt.Errorf("selection.interval must be positive")
	}
	if c.Filter.MinLength < 0 {
		return fmt.Errorf("filter.min_length must not be negative")
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
		{"telegram.poll_timeout", cfg.Telegram.PollTimeoutRaw, &cfg.Telegram.PollTimeout},
		{"retention.horizon", cfg.Retention.HorizonRaw, &cfg.Retention.Horizon},
		{"retention.cleanup_interval", cfg.Retention.CleanupIntervalRaw, &cfg.Retention.CleanupInterval},
		{"selection.interval", cfg.Selection.IntervalRaw, &cfg.Selection.Interval},
		{"selection.openai.timeout", cfg.Selection.OpenAI.TimeoutRaw, &cfg.Selection.OpenAI.Timeout},
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
