package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultDataDir is the subdirectory within the user's home directory.
const defaultDataDir = ".config/msgsort"

// ResolveDataPath returns configuredPath when it is absolute (or the
// in-memory SQLite name), and otherwise resolves it inside ~/.config/msgsort.
func ResolveDataPath(configuredPath, defaultFilename string) (string, error) {
	if configuredPath == ":memory:" || filepath.IsAbs(configuredPath) {
		return configuredPath, nil
	}
	filename := configuredPath
	if filename == "" {
		filename = defaultFilename
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, defaultDataDir, filename), nil
}
