package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DataDir returns the directory the engine should use for its durable
// catalog store, creating it if necessary.
func DataDir() (string, error) {
	var base string
	if runtime.GOOS == "windows" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return "", err
		}
		base = dir
	} else {
		dir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(dir, ".local", "share")
	}

	path := filepath.Join(base, AppName)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// DefaultDBPath returns the default path to the catalog store file under
// the per-user data directory.
func DefaultDBPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "smart_selection.db"), nil
}

// ExpandUser expands a leading "~" in path to the user's home directory.
// Theming config files reference templates and destinations with "~", per
// the Theming Engine's configuration contract.
func ExpandUser(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if len(path) == 1 {
		return home, nil
	}
	if path[1] == '/' || path[1] == filepath.Separator {
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
