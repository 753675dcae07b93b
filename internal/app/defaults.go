package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults are the paths used before a config file exists.
type Defaults struct {
	ConfigPath string
	BaseDir    string
}

// GetDefaults resolves the default paths, checking environment variables first:
//   - HELPDESK_CONFIG_PATH: config file location (default: ~/.config/helpdesk.toml)
//   - HELPDESK_HOME: base directory for the database, keys, snapshots and logs
//     (default: ~/.local/share/helpdesk)
func GetDefaults() (Defaults, error) {
	configPath := os.Getenv("HELPDESK_CONFIG_PATH")
	baseDir := os.Getenv("HELPDESK_HOME")
	if configPath != "" && baseDir != "" {
		return Defaults{ConfigPath: configPath, BaseDir: baseDir}, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Defaults{}, fmt.Errorf("cannot determine home directory: %w", err)
	}
	if configPath == "" {
		configPath = filepath.Join(homeDir, ".config", "helpdesk.toml")
	}
	if baseDir == "" {
		baseDir = filepath.Join(homeDir, ".local", "share", "helpdesk")
	}
	return Defaults{ConfigPath: configPath, BaseDir: baseDir}, nil
}
