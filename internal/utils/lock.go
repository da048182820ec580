package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const (
	lockFileSuffix = ".lock"
)

// FileLock serializes jsenv processes working on the same path, such as two
// release runs in one checkout.
type FileLock struct {
	lock *flock.Flock
	path string

	// NoWait makes Lock fail instead of waiting for another holder.
	NoWait bool
}

// NewFileLock creates a lock next to target.
func NewFileLock(target string) (*FileLock, error) {
	absPath, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path: %w", err)
	}
	lockPath := absPath + lockFileSuffix
	return &FileLock{
		lock: flock.New(lockPath),
		path: lockPath,
	}, nil
}

// Path returns the lock file path.
func (l *FileLock) Path() string { return l.path }

// Lock acquires the lock, waiting if necessary unless NoWait is set.
// It will print a message if it has to wait.
func (l *FileLock) Lock() error {
	locked, err := l.TryLock()
	if err != nil {
		return err
	}
	if locked {
		return nil
	}
	if l.NoWait {
		return fmt.Errorf("%s is held by another jsenv process", l.path)
	}

	fmt.Fprintf(os.Stderr, "Another jsenv process holds %s, waiting for it to finish...\n", l.path)
	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s after waiting: %w", l.path, err)
	}
	return nil
}

// TryLock acquires the lock without waiting and reports whether it did.
func (l *FileLock) TryLock() (bool, error) {
	locked, err := l.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}
	return locked, nil
}

// Unlock releases the lock.
func (l *FileLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		// Suppress error if the lock file doesn't exist, as it means we don't hold the lock.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}

// DefaultDBPath resolves the history database path. An empty path means
// ~/.config/jsenv/jsenv.sqlite.
func DefaultDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir := filepath.Join(home, ".config", "jsenv")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		return filepath.Join(dir, "jsenv.sqlite"), nil
	}
	return filepath.Abs(dbPath)
}
