package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// EnvPrefix namespaces environment variable overrides.
const EnvPrefix = "BURROW_"

// Loader loads configuration: defaults, then an optional JSON file, then
// environment overrides, then validation.
type Loader struct {
	validator *Validator
}

func NewLoader() *Loader {
	return &Loader{validator: NewValidator()}
}

// Load builds the effective configuration. A missing file is not an error;
// an unreadable or invalid one is.
func (l *Loader) Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		if err := l.mergeFile(config, path); err != nil {
			return nil, err
		}
	}

	l.applyEnvironmentOverrides(config)

	if err := l.validator.Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func (l *Loader) mergeFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (l *Loader) applyEnvironmentOverrides(config *Config) {
	if v := os.Getenv(EnvPrefix + "HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv(EnvPrefix + "PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv(EnvPrefix + "CLAUDE_BIN"); v != "" {
		config.Claude.Bin = v
	}
	if v := os.Getenv(EnvPrefix + "MODEL"); v != "" {
		config.Claude.Model = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		config.Storage.DatabasePath = v
	}
	if v := os.Getenv(EnvPrefix + "AGENTS_DIR"); v != "" {
		config.Storage.AgentsDir = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
