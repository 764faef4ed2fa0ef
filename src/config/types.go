// Package config holds the server configuration: defaults, a JSON file
// loader with environment overrides, and validation.
package config

import "fmt"

// Config is the complete server configuration.
type Config struct {
	Version string        `json:"version,omitempty"`
	Server  ServerConfig  `json:"server"`
	Claude  ClaudeConfig  `json:"claude"`
	Session SessionConfig `json:"session"`
	Storage StorageConfig `json:"storage"`
	Logging LoggingConfig `json:"logging"`

	// DefaultAgent is used for conversations opened without an explicit agent.
	DefaultAgent string `json:"default_agent"`
}

// ServerConfig configures the websocket listener.
type ServerConfig struct {
	Host             string `json:"host" validate:"required"`
	Port             int    `json:"port" validate:"min=1,max=65535"`
	KeepaliveSeconds int    `json:"keepalive_seconds" validate:"min=1"`
}

// ClaudeConfig configures the claude CLI subprocess.
type ClaudeConfig struct {
	Bin   string `json:"bin" validate:"required"`
	Model string `json:"model,omitempty"`
}

// SessionConfig configures turn behavior.
type SessionConfig struct {
	AnswerTimeoutSeconds int `json:"answer_timeout_seconds" validate:"min=1"`
}

// StorageConfig configures on-disk locations.
type StorageConfig struct {
	DatabasePath     string `json:"database_path" validate:"required"`
	AgentsDir        string `json:"agents_dir" validate:"required"`
	BuiltinAgentsDir string `json:"builtin_agents_dir,omitempty"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `json:"level,omitempty" validate:"omitempty,log_level"`
	Format string `json:"format,omitempty" validate:"omitempty,log_format"`
}

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config field %s: %s", e.Field, e.Message)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
