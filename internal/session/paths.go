package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.moim.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".moim")
}

// Dir returns the account-specific directory.
func Dir(account string) string {
	return filepath.Join(BaseDir(), "accounts", account)
}

// LockPath returns the lock file path for an account.
func LockPath(account string) string {
	return filepath.Join(Dir(account), "LOCK")
}

// LogDir returns the log directory for an account.
func LogDir(account string) string {
	return filepath.Join(Dir(account), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(account string) string {
	return filepath.Join(LogDir(account), "moimd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the account directory tree with proper permissions.
func EnsureDir(account string) error {
	dirs := []string{
		Dir(account),
		LogDir(account),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
