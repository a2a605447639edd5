// Package profile manages the per-profile directory layout under
// ~/.sessiond. Each profile holds one local identity's database, logs
// and settings, so several accounts can run side by side.
package profile

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.sessiond.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sessiond")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// LockPath returns the lock file path for a profile.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// DBPath returns the profile-owned client.db path.
func DBPath(name string) string {
	return filepath.Join(Dir(name), "client.db")
}

// SettingsPath returns the per-profile settings.toml path.
func SettingsPath(name string) string {
	return filepath.Join(Dir(name), "settings.toml")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "sessiond.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
