package types

import (
	"strings"
	"testing"
)

func TestValidationErrorMessage(t *testing.T) {
	verr := NewValidationError()
	if verr.HasErrors() {
		t.Fatal("new ValidationError should be empty")
	}

	verr.Add("meter.range_db", "must be greater than 0", -3.0)
	verr.Add("", "window too small", nil)

	if !verr.HasErrors() {
		t.Fatal("HasErrors() = false after Add")
	}

	msg := verr.Error()
	for _, want := range []string{"meter.range_db must be greater than 0 (got -3)", "window too small"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}
