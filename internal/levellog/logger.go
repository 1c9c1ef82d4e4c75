// Package levellog archives per-cycle meter readings and silence events in
// rotating JSON lines files.
package levellog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-levelmeter/internal/types"
)

// EventType represents the type of a log entry.
type EventType string

// Entry types.
const (
	Level        EventType = "level"
	SilenceStart EventType = "silence_start"
	SilenceEnd   EventType = "silence_end"
)

// Entry is a single log line with type-specific details.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	Type      EventType `json:"type"`
	Cycle     uint64    `json:"cycle,omitempty"`
	Details   any       `json:"details,omitempty"`
}

// LevelDetails contains the readings of one channel.
type LevelDetails struct {
	Channel   int     `json:"channel"`
	DC        float64 `json:"dc"`
	AC        float64 `json:"ac"`
	Peak      float64 `json:"peak"`
	Level     int     `json:"level"`
	PeakLevel int     `json:"peak_level"`
}

// SilenceDetails contains silence-specific event details.
type SilenceDetails struct {
	DurationMs int64 `json:"duration_ms"`
}

// Enqueuer accepts closed log files for archiving.
type Enqueuer interface {
	Enqueue(path string)
}

// Config configures a Logger.
type Config struct {
	// Dir is the directory log files are written to.
	Dir string
	// Rotate selects hourly or daily files.
	Rotate types.RotationMode
	// Archive receives every file after it is closed; may be nil.
	Archive Enqueuer
	// Now returns the current time; nil uses time.Now.
	Now func() time.Time
}

// Logger writes meter frames to rotating JSON lines files.
type Logger struct {
	mu      sync.Mutex
	dir     string
	rotate  types.RotationMode
	archive Enqueuer
	now     func() time.Time

	file    *os.File
	path    string
	encoder *json.Encoder
	period  time.Time

	inSilence         bool
	silenceDurationMs int64
}

// New creates a logger writing to cfg.Dir.
func New(cfg Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	rotate := cfg.Rotate
	if rotate == "" {
		rotate = types.RotationDaily
	}

	return &Logger{
		dir:     cfg.Dir,
		rotate:  rotate,
		archive: cfg.Archive,
		now:     now,
	}, nil
}

// Publish writes one level entry per channel of f, plus a silence event on
// every silence transition.
func (l *Logger) Publish(f *types.Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := f.Timestamp
	if ts.IsZero() {
		ts = l.now()
	}
	if err := l.rotateLocked(ts); err != nil {
		return err
	}

	var errs []error
	for ch, c := range f.Channels {
		errs = append(errs, l.encoder.Encode(&Entry{
			Timestamp: ts,
			Type:      Level,
			Cycle:     f.Cycle,
			Details: LevelDetails{
				Channel:   ch,
				DC:        c.DC,
				AC:        c.AC,
				Peak:      c.Peak,
				Level:     c.Level,
				PeakLevel: c.PeakLevel,
			},
		}))
	}

	switch {
	case f.Silence && !l.inSilence:
		errs = append(errs, l.encoder.Encode(&Entry{
			Timestamp: ts,
			Type:      SilenceStart,
			Cycle:     f.Cycle,
			Details:   SilenceDetails{DurationMs: f.SilenceDurationMs},
		}))
	case !f.Silence && l.inSilence:
		errs = append(errs, l.encoder.Encode(&Entry{
			Timestamp: ts,
			Type:      SilenceEnd,
			Cycle:     f.Cycle,
			Details:   SilenceDetails{DurationMs: l.silenceDurationMs},
		}))
	}
	l.inSilence = f.Silence
	l.silenceDurationMs = f.SilenceDurationMs

	return errors.Join(errs...)
}

// rotateLocked opens the file for the period containing ts, closing and
// archiving the previous one.
func (l *Logger) rotateLocked(ts time.Time) error {
	period := l.periodStart(ts)
	if l.file != nil && period.Equal(l.period) {
		return nil
	}

	if err := l.closeLocked(); err != nil {
		return err
	}

	path := filepath.Join(l.dir, l.fileName(period))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	l.file = file
	l.path = path
	l.encoder = json.NewEncoder(file)
	l.period = period
	return nil
}

func (l *Logger) periodStart(ts time.Time) time.Time {
	if l.rotate == types.RotationHourly {
		return ts.Truncate(time.Hour)
	}
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, ts.Location())
}

func (l *Logger) fileName(period time.Time) string {
	if l.rotate == types.RotationHourly {
		return "levels-" + period.Format("2006-01-02T15") + ".jsonl"
	}
	return "levels-" + period.Format("2006-01-02") + ".jsonl"
}

func (l *Logger) closeLocked() error {
	if l.file == nil {
		return nil
	}

	err := l.file.Close()
	path := l.path
	l.file = nil
	l.encoder = nil
	l.path = ""

	if err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	if l.archive != nil {
		l.archive.Enqueue(path)
	}
	return nil
}

// Path returns the file currently written to, or "" before the first frame.
func (l *Logger) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// Close closes the current file and hands it to the archive.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}
