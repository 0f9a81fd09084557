package platform

import (
	"fmt"
	"os"
	"runtime"
)

// Chmod sets file permissions. On Windows this is a no-op because Windows
// does not support Unix-style permission bits.
func Chmod(path string, mode os.FileMode) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	return os.Chmod(path, mode)
}

// EnsureExecutable adds the execute bits to path when the owner cannot run it.
func EnsureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	perm := info.Mode().Perm()
	if perm&0100 != 0 {
		return nil
	}
	if err := Chmod(path, perm|0755); err != nil {
		return fmt.Errorf("making %s executable: %w", path, err)
	}
	return nil
}
