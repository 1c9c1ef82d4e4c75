package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsConfigured(t *testing.T) {
	if !IsConfigured("a", "b") {
		t.Error("IsConfigured(a, b) = false")
	}
	if IsConfigured("a", "") {
		t.Error("IsConfigured(a, \"\") = true")
	}
	if !IsConfigured() {
		t.Error("IsConfigured() = false")
	}
}

func TestCheckDirWritableCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	if err := CheckDirWritable(dir); err != nil {
		t.Fatalf("CheckDirWritable() error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("probe file left behind: %v", entries)
	}
}
