// ABOUTME: Configuration loading and parsing for the ripple client
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete ripple client configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Cache   CacheConfig   `yaml:"cache"`
	Timing  TimingConfig  `yaml:"timing"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds backend endpoint configuration
type ServerConfig struct {
	APIURL    string `yaml:"api_url"`
	SocketURL string `yaml:"socket_url"`
}

// CacheConfig holds the local warm-start cache configuration
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TimingConfig holds typing indicator timing configuration
type TimingConfig struct {
	TypingDebounce time.Duration `yaml:"-"`
	TypingExpiry   time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	TypingDebounceRaw string `yaml:"typing_debounce"`
	TypingExpiryRaw   string `yaml:"typing_expiry"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no config file is given:
// a local development backend and an in-memory-only cache.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			APIURL:    "http://localhost:5000",
			SocketURL: "ws://localhost:5000/socket",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
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
	if c.Server.APIURL == "" {
		return fmt.Errorf("server.api_url is required")
	}
	if c.Server.SocketURL == "" {
		return fmt.Errorf("server.socket_url is required")
	}

	if c.Cache.Enabled && c.Cache.Path == "" {
		return fmt.Errorf("cache.path is required when cache is enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Timing.TypingDebounceRaw != "" {
		cfg.Timing.TypingDebounce, err = time.ParseDuration(cfg.Timing.TypingDebounceRaw)
		if err != nil {
			return fmt.Errorf("parsing typing_debounce %q: %w", cfg.Timing.TypingDebounceRaw, err)
		}
	}

	if cfg.Timing.TypingExpiryRaw != "" {
		cfg.Timing.TypingExpiry, err = time.ParseDuration(cfg.Timing.TypingExpiryRaw)
		if err != nil {
			return fmt.Errorf("parsing typing_expiry %q: %w", cfg.Timing.TypingExpiryRaw, err)
		}
	}

	return nil
}
