//go:build unix

package vault

import (
	"fmt"
	"os"
	"syscall"
)

// acquireLock locks the data directory, waiting for any other holder, and
// records this process as the holder.
func acquireLock(path string) (*os.File, error) {
	return lockFile(path, syscall.LOCK_EX)
}

// tryLock locks the data directory without waiting. The error names the
// holding pid when the lock file records one.
func tryLock(path string) (*os.File, error) {
	return lockFile(path, syscall.LOCK_EX|syscall.LOCK_NB)
}

func lockFile(path string, how int) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), how); err != nil {
		_ = f.Close()
		if how&syscall.LOCK_NB != 0 {
			return nil, heldError(path, err)
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if err := recordHolder(f); err != nil {
		releaseLock(f)
		return nil, err
	}
	return f, nil
}

// releaseLock clears the recorded holder, unlocks and closes f. A nil file
// is ignored.
func releaseLock(f *os.File) {
	if f == nil {
		return
	}
	_ = f.Truncate(0)
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	_ = f.Close()
}
