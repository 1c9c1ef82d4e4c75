package audio

import (
	"time"

	"github.com/oszuidwest/zwfm-levelmeter/internal/types"
)

// SilenceConfig holds the configurable thresholds for silence detection.
type SilenceConfig struct {
	ThresholdLevel int   // display level below which a channel is considered silent
	DurationMs     int64 // milliseconds of silence before triggering
	RecoveryMs     int64 // milliseconds of audio before considering recovered
}

// Enabled reports whether silence detection is configured.
func (c SilenceConfig) Enabled() bool {
	return c.ThresholdLevel > 0
}

// SilenceEvent represents the result of a silence detection update.
type SilenceEvent struct {
	InSilence  bool               // currently in confirmed silence state
	DurationMs int64              // current silence duration in ms (0 if not silent)
	Level      types.SilenceLevel // "active" when in silence, "" otherwise

	JustEntered     bool  // true on the cycle silence is first confirmed
	JustRecovered   bool  // true on the cycle recovery completes
	TotalDurationMs int64 // total silence duration in ms (only set when JustRecovered)
}

// SilenceDetector tracks silence across all channels.
// It is owned by the meter loop and not safe for concurrent use.
type SilenceDetector struct {
	silenceStart      time.Time
	recoveryStart     time.Time
	inSilence         bool
	silenceDurationMs int64
}

// NewSilenceDetector creates a new silence detector.
func NewSilenceDetector() *SilenceDetector {
	return &SilenceDetector{}
}

// Update feeds the display levels of one cycle and returns the current state.
// Audio is silent when every channel is below the threshold level.
func (d *SilenceDetector) Update(levels []int, cfg SilenceConfig, now time.Time) SilenceEvent {
	var event SilenceEvent

	if allBelow(levels, cfg.ThresholdLevel) {
		d.recoveryStart = time.Time{}

		if d.silenceStart.IsZero() {
			d.silenceStart = now
		}

		silenceDurationMs := now.Sub(d.silenceStart).Milliseconds()
		d.silenceDurationMs = silenceDurationMs

		if d.inSilence || silenceDurationMs >= cfg.DurationMs {
			event.JustEntered = !d.inSilence
			d.inSilence = true
			event.InSilence = true
			event.DurationMs = silenceDurationMs
			event.Level = types.SilenceLevelActive
		}
		return event
	}

	// Preserve silence start while recovering.
	if !d.inSilence {
		d.silenceStart = time.Time{}
		return event
	}

	if d.recoveryStart.IsZero() {
		d.recoveryStart = now
	}

	if now.Sub(d.recoveryStart).Milliseconds() >= cfg.RecoveryMs {
		event.JustRecovered = true
		event.TotalDurationMs = d.silenceDurationMs
		d.Reset()
		return event
	}

	event.InSilence = true
	event.Level = types.SilenceLevelActive
	return event
}

// Reset clears the silence detection state.
func (d *SilenceDetector) Reset() {
	d.silenceStart = time.Time{}
	d.recoveryStart = time.Time{}
	d.inSilence = false
	d.silenceDurationMs = 0
}

func allBelow(levels []int, threshold int) bool {
	if len(levels) == 0 {
		return false
	}
	for _, l := range levels {
		if l >= threshold {
			return false
		}
	}
	return true
}
