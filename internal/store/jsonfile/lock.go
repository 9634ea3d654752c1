package jsonfile

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// withSharedLock executes fn while holding a shared (read) lock on path.
// Multiple processes can hold shared locks simultaneously.
func withSharedLock(path string, fn func() error) error {
	return withFileLock(path, syscall.LOCK_SH, fn)
}

// withExclusiveLock executes fn while holding an exclusive (write) lock on path.
func withExclusiveLock(path string, fn func() error) error {
	return withFileLock(path, syscall.LOCK_EX, fn)
}

func withFileLock(path string, lockType int, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if err := syscall.Flock(int(f.Fd()), lockType); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN) //nolint:errcheck

	return fn()
}
