// Package config loads numlink runtime configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds tunables for a numlink session.
type Config struct {
	// LogLevel sets the logging verbosity: debug|info|warn|error.
	LogLevel string `yaml:"log_level"`

	// MetricsNamespace prefixes all Prometheus metric names.
	MetricsNamespace string `yaml:"metrics_namespace"`

	// EventBufferSize is the capacity of the interop event ring buffer.
	EventBufferSize int `yaml:"event_buffer_size"`

	// StrictByteOrder makes a byte-order mismatch between the engine and
	// the host a hard error instead of triggering a delegated byteswap.
	StrictByteOrder bool `yaml:"strict_byte_order"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		LogLevel:         "info",
		MetricsNamespace: "numlink",
		EventBufferSize:  256,
		StrictByteOrder:  false,
	}
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from path, falling back to defaults
// when the file does not exist.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}
	if c.EventBufferSize <= 0 {
		return fmt.Errorf("config: event_buffer_size must be positive, got %d", c.EventBufferSize)
	}
	return nil
}
