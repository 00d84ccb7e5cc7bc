package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigDir returns the per-user config directory (~/.nats-echo).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".nats-echo"), nil
}

// DefaultPath resolves a config file name. Absolute paths and files present in the
// working directory win; otherwise the file is looked up under ConfigDir.
func DefaultPath(name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}

	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
