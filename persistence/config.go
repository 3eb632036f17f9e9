package persistence

import (
	"encoding/json"
	"fmt"
	"os"
)

const defaultPath = "etc/persist"

// Config holds persistence initialization parameters.
type Config struct {
	Service  string `json:"service,omitempty"`  // Owner identifier; every unit of the service shares one file.
	Path     string `json:"path,omitempty"`     // Storage root; relative paths are joined onto Base.
	Base     string `json:"base,omitempty"`     // Project directory for relative Path; empty means the working directory.
	Observer string `json:"observer,omitempty"` // Name of a registered observer; empty means "slog".
}

// DefaultConfig returns the default persistence configuration.
func DefaultConfig() Config {
	return Config{
		Path: defaultPath,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Service != "" {
		c.Service = source.Service
	}
	if source.Path != "" {
		c.Path = source.Path
	}
	if source.Base != "" {
		c.Base = source.Base
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
