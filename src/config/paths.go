package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const appDirName = "wirebird"

// DefaultDatabasePath returns the XDG state location for the database.
func DefaultDatabasePath() string {
	return filepath.Join(xdg.StateHome, appDirName, "wirebird.db")
}

// DefaultConfigPath returns the XDG config location for the config file.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appDirName, "config.json")
}
