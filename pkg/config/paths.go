package config

import (
	"os"
	"path/filepath"
)

// getDataHome returns $XDG_DATA_HOME, ~/.local/share, or "." as a last
// resort.
func getDataHome() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return xdgData
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}
