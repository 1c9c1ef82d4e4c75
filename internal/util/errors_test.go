package util

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapError(t *testing.T) {
	if WrapError("read config", nil) != nil {
		t.Fatal("WrapError(nil) should be nil")
	}

	base := errors.New("boom")
	err := WrapError("read config", base)
	if !errors.Is(err, base) {
		t.Errorf("wrapped error does not unwrap to base")
	}
	if err.Error() != "failed to read config: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestExtractLastError(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   string
	}{
		{"empty", "", ""},
		{"single", "arecord: main:831: audio open error", "arecord: main:831: audio open error"},
		{"trailing blanks", "first\nsecond\n\n  \n", "second"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractLastError(tt.stderr); got != tt.want {
				t.Errorf("ExtractLastError() = %q, want %q", got, tt.want)
			}
		})
	}

	long := strings.Repeat("x", maxErrorLineLength+10)
	if got := ExtractLastError(long); len(got) != maxErrorLineLength+3 {
		t.Errorf("long line not truncated: len %d", len(got))
	}
}
