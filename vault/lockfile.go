package vault

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// recordHolder replaces the lock file contents with this process's pid.
func recordHolder(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}
	return f.Sync()
}

// lockHolder returns the pid recorded in the lock file at path, or 0 when
// the file is empty or unreadable.
func lockHolder(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

func heldError(path string, err error) error {
	if pid := lockHolder(path); pid != 0 {
		return fmt.Errorf("lock held by pid %d: %w", pid, err)
	}
	return fmt.Errorf("lock held by another process: %w", err)
}
