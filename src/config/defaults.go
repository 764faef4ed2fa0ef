package config

// DefaultConfig returns the built-in defaults. File and environment overrides
// are layered on top by the Loader.
func DefaultConfig() *Config {
	paths := DefaultPaths()
	return &Config{
		Version: "1.0",
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             8787,
			KeepaliveSeconds: 30,
		},
		Claude: ClaudeConfig{
			Bin: "claude",
		},
		Session: SessionConfig{
			AnswerTimeoutSeconds: 300,
		},
		Storage: StorageConfig{
			DatabasePath: paths.DatabasePath,
			AgentsDir:    paths.AgentsDir,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		DefaultAgent: "assistant",
	}
}
