package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// Paths are the XDG-derived storage locations.
type Paths struct {
	ConfigPath   string
	DatabasePath string
	AgentsDir    string
}

// DefaultPaths returns default locations following the XDG base directory
// specification: config under XDG_CONFIG_HOME, state under XDG_STATE_HOME,
// user data under XDG_DATA_HOME.
func DefaultPaths() Paths {
	return Paths{
		ConfigPath:   filepath.Join(xdg.ConfigHome, "burrow", "config.json"),
		DatabasePath: filepath.Join(xdg.StateHome, "burrow", "conversations.db"),
		AgentsDir:    filepath.Join(xdg.DataHome, "burrow", "agents"),
	}
}
