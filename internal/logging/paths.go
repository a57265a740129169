package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.hybridsearch/logs/).
// Falls back to the system temp directory if the home directory is
// unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".hybridsearch", "logs")
	}
	return filepath.Join(home, ".hybridsearch", "logs")
}

// DefaultLogPath returns the default searcher log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "searcher.log")
}

// EnsureLogDir creates the log directory if it doesn't already exist.
func EnsureLogDir() error {
	dir := DefaultLogDir()
	return os.MkdirAll(dir, 0o755)
}
