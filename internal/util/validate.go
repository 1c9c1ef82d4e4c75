package util

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// IsConfigured reports whether all provided values are non-empty.
func IsConfigured(values ...string) bool {
	for _, v := range values {
		if v == "" {
			return false
		}
	}
	return true
}

// CheckDirWritable creates dir if needed and verifies a file can be written in it.
func CheckDirWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return WrapError("create directory", err)
	}

	probe := filepath.Join(dir, fmt.Sprintf(".levelmeter-write-test-%d", time.Now().UnixNano()))
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	if err := os.Remove(probe); err != nil {
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	return nil
}
