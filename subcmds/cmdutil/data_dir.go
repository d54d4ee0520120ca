// Copyright (c) 2023 BVK Chaitanya

package cmdutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// DataDir returns the absolute path of the data directory, creating it when
// necessary. Empty dir selects $HOME/.volumebot.
func DataDir(dir string) (string, error) {
	if len(dir) == 0 {
		dir = filepath.Join(os.Getenv("HOME"), ".volumebot")
	}
	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("could not stat data directory %q: %w", dir, err)
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return "", fmt.Errorf("could not create data directory %q: %w", dir, err)
		}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("could not determine data-dir %q absolute path: %w", dir, err)
	}
	return abs, nil
}

// SecretsPath returns the secrets file path in the data directory.
func SecretsPath(dataDir string) string {
	return filepath.Join(dataDir, "secrets.json")
}
