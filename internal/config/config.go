// ABOUTME: Configuration loading and parsing for replybot
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete replybot configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Bot      BotConfig      `yaml:"bot"`
	Sessions SessionsConfig `yaml:"sessions"`
	Flows    FlowsConfig    `yaml:"flows"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// BotConfig identifies the bot on its chat platform
type BotConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	TeamID   string `yaml:"team_id"`
	TeamName string `yaml:"team_name"`
}

// SessionsConfig holds session locking and timeout configuration
type SessionsConfig struct {
	LockTTL       time.Duration `yaml:"-"`
	RetryInterval time.Duration `yaml:"-"`
	MaxMessageAge time.Duration `yaml:"-"`
	ClaimTTL      time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	LockTTLRaw       string `yaml:"lock_ttl"`
	RetryIntervalRaw string `yaml:"retry_interval"`
	MaxMessageAgeRaw string `yaml:"max_message_age"`
	ClaimTTLRaw      string `yaml:"claim_ttl"`
}

// FlowsConfig holds flow supervisor timing configuration
type FlowsConfig struct {
	TypingInterval time.Duration `yaml:"-"`
	Timeout        time.Duration `yaml:"-"`

	TypingIntervalRaw string `yaml:"typing_interval"`
	TimeoutRaw        string `yaml:"timeout"`
}

// SearchConfig holds answer search configuration
type SearchConfig struct {
	Size    int `yaml:"size"`
	Retries int `yaml:"retries"`

	InitialTimeout time.Duration `yaml:"-"`
	RetryStep      time.Duration `yaml:"-"`

	InitialTimeoutRaw string `yaml:"initial_timeout"`
	RetryStepRaw      string `yaml:"retry_step"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
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

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Bot.ID == "" {
		return fmt.Errorf("bot.id is required")
	}
	if c.Bot.Name == "" {
		return fmt.Errorf("bot.name is required")
	}
	if c.Bot.TeamID == "" {
		return fmt.Errorf("bot.team_id is required")
	}
	if c.Search.Size < 0 {
		return fmt.Errorf("search.size must not be negative")
	}
	if c.Search.Retries < 0 {
		return fmt.Errorf("search.retries must not be negative")
	}
	return nil
}

// applyDefaults fills in unset timing and search fields so a minimal
// config (database path plus bot identity) runs with working values.
func applyDefaults(cfg *Config) {
	defaultDuration(&cfg.Sessions.LockTTL, 5*time.Second)
	defaultDuration(&cfg.Sessions.RetryInterval, 20*time.Millisecond)
	defaultDuration(&cfg.Sessions.MaxMessageAge, 60*time.Second)
	defaultDuration(&cfg.Sessions.ClaimTTL, 60*time.Second)
	defaultDuration(&cfg.Flows.TypingInterval, 2500*time.Millisecond)
	defaultDuration(&cfg.Flows.Timeout, 15*time.Second)
	defaultDuration(&cfg.Search.InitialTimeout, 500*time.Millisecond)
	defaultDuration(&cfg.Search.RetryStep, 1500*time.Millisecond)
	if cfg.Search.Size == 0 {
		cfg.Search.Size = 26
	}
	if cfg.Search.Retries == 0 {
		cfg.Search.Retries = 3
	}
}

func defaultDuration(dst *time.Duration, d time.Duration) {
	if *dst == 0 {
		*dst = d
	}
}

type durationField struct {
	raw  string
	name string
	dst  *time.Duration
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []durationField{
		{cfg.Sessions.LockTTLRaw, "sessions.lock_ttl", &cfg.Sessions.LockTTL},
		{cfg.Sessions.RetryIntervalRaw, "sessions.retry_interval", &cfg.Sessions.RetryInterval},
		{cfg.Sessions.MaxMessageAgeRaw, "sessions.max_message_age", &cfg.Sessions.MaxMessageAge},
		{cfg.Sessions.ClaimTTLRaw, "sessions.claim_ttl", &cfg.Sessions.ClaimTTL},
		{cfg.Flows.TypingIntervalRaw, "flows.typing_interval", &cfg.Flows.TypingInterval},
		{cfg.Flows.TimeoutRaw, "flows.timeout", &cfg.Flows.Timeout},
		{cfg.Search.InitialTimeoutRaw, "search.initial_timeout", &cfg.Search.InitialTimeout},
		{cfg.Search.RetryStepRaw, "search.retry_step", &cfg.Search.RetryStep},
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
