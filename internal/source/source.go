// Package source delivers windows of raw samples to the meter loop.
package source

import (
	"context"
	"errors"

	"github.com/oszuidwest/zwfm-levelmeter/internal/audio"
)

// Sentinel errors for window acquisition.
var (
	// ErrTimeout is returned when no window arrived within the acquisition timeout.
	ErrTimeout = errors.New("acquisition timed out")
	// ErrOverflow is returned once after windows were dropped because the
	// consumer fell behind.
	ErrOverflow = errors.New("sample queue overflowed")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("source closed")
)

// Source delivers one window of samples per call.
type Source interface {
	// ReadWindow blocks until a full window has been decoded into w.
	// ErrTimeout and ErrOverflow are not fatal; io.EOF means the source is
	// exhausted.
	ReadWindow(ctx context.Context, w *audio.Window) error
	// Close stops the source and releases its resources.
	Close() error
}

// IsTransient reports whether err only affects the current window.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrOverflow)
}
