//go:build windows

package vault

import (
	"fmt"
	"os"
)

// Windows has no syscall.Flock. The vault mutex still serialises callers
// within one process and bbolt locks the database file itself; the lock
// file only records the last process to open the directory.

func acquireLock(path string) (*os.File, error) {
	return openLockFile(path)
}

func tryLock(path string) (*os.File, error) {
	return openLockFile(path)
}

func openLockFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := recordHolder(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func releaseLock(f *os.File) {
	if f == nil {
		return
	}
	_ = f.Truncate(0)
	_ = f.Close()
}
