// Package types provides shared type definitions used across the level meter.
package types

import (
	"time"
)

// MeterState represents the current state of the meter loop.
type MeterState string

const (
	// StateStopped indicates the meter is not running.
	StateStopped MeterState = "stopped"
	// StateStarting indicates the sample source is being (re)started.
	StateStarting MeterState = "starting"
	// StateRunning indicates windows are being measured.
	StateRunning MeterState = "running"
)

const (
	// InitialRetryDelay is the starting delay between source restart attempts.
	InitialRetryDelay = 3000 * time.Millisecond
	// MaxRetryDelay is the maximum delay between source restart attempts.
	MaxRetryDelay = 60000 * time.Millisecond
	// MaxRetries is the maximum number of consecutive source failures.
	MaxRetries = 10
	// SuccessThreshold is the run duration after which the retry count resets.
	SuccessThreshold = 30000 * time.Millisecond
)

const (
	// ShutdownTimeout is the duration to wait for graceful shutdown.
	ShutdownTimeout = 3000 * time.Millisecond
)

// MaxChannels is the largest supported channel count.
const MaxChannels = 2

// Capture defaults used when the config leaves them unset.
const (
	// SampleRate is the default capture sample rate in Hz.
	SampleRate = 44100
	// WindowSize is the default number of frames per measurement window.
	WindowSize = 1024
)

// Mode selects the AC estimation algorithm.
type Mode string

const (
	// ModePower estimates AC as the mean absolute deviation from DC.
	ModePower Mode = "power"
	// ModeVoltage estimates AC from the largest adjacent-pair excursion.
	ModeVoltage Mode = "voltage"
)

// Units selects the physical unit readings are reported in.
type Units string

const (
	// UnitsPercent reports readings as percent of full scale.
	UnitsPercent Units = "percent"
	// UnitsMillivolts reports readings as millivolts at the ADC input.
	UnitsMillivolts Units = "millivolts"
)

// SampleFormat is the raw sample encoding delivered by a source.
type SampleFormat string

const (
	// FormatS16LE is signed 16-bit little-endian PCM.
	FormatS16LE SampleFormat = "s16le"
	// FormatS8 is signed 8-bit PCM.
	FormatS8 SampleFormat = "s8"
	// FormatU16LE is unsigned 16-bit little-endian ADC counts.
	FormatU16LE SampleFormat = "u16le"
)

// BytesPerSample returns the encoded size of one sample.
func (f SampleFormat) BytesPerSample() int {
	if f == FormatS8 {
		return 1
	}
	return 2
}

// SourceType selects where samples come from.
type SourceType string

const (
	// SourceCapture runs the platform capture command (arecord or FFmpeg).
	SourceCapture SourceType = "capture"
	// SourceCommand runs a user supplied command writing raw samples to stdout.
	SourceCommand SourceType = "command"
	// SourceWAV reads samples from a WAV file.
	SourceWAV SourceType = "wav"
)

// DisplayType selects the bar graph output.
type DisplayType string

const (
	// DisplayConsole draws the bar graph on the terminal.
	DisplayConsole DisplayType = "console"
	// DisplayNone disables the bar graph output.
	DisplayNone DisplayType = "none"
)

// RotationMode determines how level logs are split into files.
type RotationMode string

const (
	// RotationHourly starts a new file at every clock hour.
	RotationHourly RotationMode = "hourly"
	// RotationDaily starts a new file at midnight.
	RotationDaily RotationMode = "daily"
)

// SilenceLevel represents the silence detection state.
type SilenceLevel string

// SilenceLevelActive indicates silence is confirmed.
const SilenceLevelActive SilenceLevel = "active"

// ChannelFrame is the per-channel result of one measurement cycle.
type ChannelFrame struct {
	// DC is the DC component in configured units.
	DC float64 `json:"dc"`
	// AC is the AC magnitude in configured units.
	AC float64 `json:"ac"`
	// Peak is the held peak AC magnitude in configured units.
	Peak float64 `json:"peak"`
	// Level is the display level of AC on [0, scale_max].
	Level int `json:"level"`
	// PeakLevel is the display level of Peak on [0, scale_max].
	PeakLevel int `json:"peak_level"`
	// Glyphs is the rendered bar graph row.
	Glyphs []byte `json:"glyphs"`
}

// Frame is published once per measurement cycle.
type Frame struct {
	// Timestamp is when the window finished processing.
	Timestamp time.Time `json:"ts"`
	// Cycle is the running cycle number, starting at 1.
	Cycle uint64 `json:"cycle"`
	// Units is the unit of the DC, AC and Peak fields.
	Units Units `json:"units"`
	// ScaleMax is the upper bound of the level fields.
	ScaleMax int `json:"scale_max"`
	// Channels holds one entry per measured channel.
	Channels []ChannelFrame `json:"channels"`
	// Brightness is the LED duty fraction written this cycle.
	Brightness float64 `json:"brightness"`
	// Silence reports whether all channels are below the silence threshold.
	Silence bool `json:"silence,omitzero"`
	// SilenceDurationMs is how long silence has lasted in milliseconds.
	SilenceDurationMs int64 `json:"silence_duration_ms,omitzero"`
	// SilenceLevel indicates the silence detection state (active or empty).
	SilenceLevel SilenceLevel `json:"silence_level,omitzero"`
}

// MeterStatus summarizes runtime counters for the status endpoint.
type MeterStatus struct {
	State            MeterState `json:"state"`
	Uptime           string     `json:"uptime,omitempty"`
	LastError        string     `json:"last_error,omitempty"`
	Cycles           uint64     `json:"cycles"`
	DroppedWindows   uint64     `json:"dropped_windows"`
	SinkErrors       uint64     `json:"sink_errors"`
	SourceRetryCount int        `json:"source_retry_count"`
	SourceMaxRetries int        `json:"source_max_retries"`
}

// VersionInfo contains version comparison data.
type VersionInfo struct {
	Current     string `json:"current"`              // Current version
	Latest      string `json:"latest,omitempty"`     // Latest available version
	UpdateAvail bool   `json:"update_available"`     // Update is available
	Commit      string `json:"commit,omitempty"`     // Git commit hash
	BuildTime   string `json:"build_time,omitempty"` // Build timestamp
}
