// Package config provides application configuration management.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oszuidwest/zwfm-levelmeter/internal/types"
	"github.com/oszuidwest/zwfm-levelmeter/internal/util"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultAcquireTimeoutMs  = 2000
	DefaultPercentReference  = 100.0
	DefaultMillivoltRef      = 1000.0
	DefaultPowerRangeDB      = 40.0
	DefaultVoltageRangeDB    = 32.0
	DefaultHoldCycles        = 16
	DefaultSupplyMV          = 3300.0
	DefaultADCBits           = 16
	DefaultCells             = 16
	DefaultSubCells          = 2
	DefaultSplashMs          = 1500
	DefaultWebPort           = 8080
	DefaultReleaseRepo       = "oszuidwest/zwfm-levelmeter"
	DefaultUpdateHours       = 24
	DefaultSilenceDurationMs = 15000 // 15 seconds in milliseconds
	DefaultSilenceRecoveryMs = 5000  // 5 seconds in milliseconds
)

// AudioConfig selects and describes the sample source.
type AudioConfig struct {
	Source           types.SourceType   `json:"source" validate:"oneof=capture command wav"`
	Input            string             `json:"input"`       // capture device identifier (empty = platform default)
	FFmpegPath       string             `json:"ffmpeg_path"` // FFmpeg binary for capture (empty = use PATH)
	Command          string             `json:"command" validate:"required_if=Source command"`
	Args             []string           `json:"args"`
	WAVPath          string             `json:"wav_path" validate:"required_if=Source wav"`
	Realtime         bool               `json:"realtime"` // pace WAV playback at its sample rate
	Format           types.SampleFormat `json:"format" validate:"oneof=s16le s8 u16le"`
	SampleRate       int                `json:"sample_rate" validate:"min=1000,max=384000"`
	Channels         int                `json:"channels" validate:"min=1,max=2"`
	WindowSize       int                `json:"window_size" validate:"min=4,max=65536"`
	AcquireTimeoutMs int64              `json:"acquire_timeout_ms" validate:"min=0"`
}

// MeterConfig holds the measurement and level mapping settings.
type MeterConfig struct {
	Mode        types.Mode  `json:"mode" validate:"oneof=power voltage"`
	Units       types.Units `json:"units" validate:"oneof=percent millivolts"`
	Reference   float64     `json:"reference" validate:"gt=0"` // magnitude shown as a full bar
	RangeDB     float64     `json:"range_db" validate:"gt=0,lte=200"`
	ScaleMax    int         `json:"scale_max" validate:"min=1,max=65536"`
	HoldCycles  int         `json:"hold_cycles" validate:"min=1"`
	SupplyMV    float64     `json:"supply_mv" validate:"gt=0"`
	ADCBits     int         `json:"adc_bits" validate:"min=1,max=16"`
	RoundCounts bool        `json:"round_counts"`
}

// DisplayConfig holds the bar graph settings.
type DisplayConfig struct {
	Type       types.DisplayType `json:"type" validate:"oneof=console none"`
	Cells      int               `json:"cells" validate:"min=1,max=256"`
	SubCells   int               `json:"subcells" validate:"min=1,max=7"`
	TickStride int               `json:"tick_stride" validate:"min=0"`
	SplashMs   int64             `json:"splash_ms" validate:"min=0"`
	Color      bool              `json:"color"`
}

// LEDConfig holds the PWM indicator settings. A zero period disables the LED.
type LEDConfig struct {
	PWMChip    int   `json:"pwm_chip" validate:"min=0"`
	PWMChannel int   `json:"pwm_channel" validate:"min=0"`
	PeriodNs   int64 `json:"period_ns" validate:"min=0"`
}

// WebConfig holds the frame stream server settings.
type WebConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port" validate:"min=1,max=65535"`
}

// UpdateConfig holds the release check settings.
type UpdateConfig struct {
	Enabled       bool   `json:"enabled"`
	Repo          string `json:"repo" validate:"contains=/"` // GitHub "owner/name" publishing releases
	IntervalHours int    `json:"interval_hours" validate:"min=1,max=8760"`
}

// SilenceConfig holds silence detection thresholds. A zero threshold
// disables detection.
type SilenceConfig struct {
	ThresholdLevel int   `json:"threshold_level" validate:"min=0"`
	DurationMs     int64 `json:"duration_ms" validate:"min=0"`
	RecoveryMs     int64 `json:"recovery_ms" validate:"min=0"`
}

// LogConfig holds the level log settings. An empty directory disables it.
type LogConfig struct {
	Dir               string             `json:"dir"`
	Rotate            types.RotationMode `json:"rotate" validate:"oneof=hourly daily"`
	S3Endpoint        string             `json:"s3_endpoint" validate:"omitempty,url"`
	S3Bucket          string             `json:"s3_bucket"`
	S3Prefix          string             `json:"s3_prefix"`
	S3AccessKeyID     string             `json:"s3_access_key_id"`
	S3SecretAccessKey string             `json:"s3_secret_access_key"`
	S3RemoveLocal     bool               `json:"s3_remove_local"`
}

// Config is the application configuration.
type Config struct {
	Audio   AudioConfig   `json:"audio"`
	Meter   MeterConfig   `json:"meter"`
	Display DisplayConfig `json:"display"`
	LED     LEDConfig     `json:"led"`
	Web     WebConfig     `json:"web"`
	Update  UpdateConfig  `json:"update"`
	Silence SilenceConfig `json:"silence"`
	Log     LogConfig     `json:"log"`

	mu       sync.Mutex
	filePath string
}

// New returns a Config with default values for the given file path.
func New(filePath string) *Config {
	c := &Config{
		Audio: AudioConfig{
			Source:           types.SourceCapture,
			Format:           types.FormatS16LE,
			SampleRate:       types.SampleRate,
			Channels:         types.MaxChannels,
			WindowSize:       types.WindowSize,
			AcquireTimeoutMs: DefaultAcquireTimeoutMs,
		},
		Meter: MeterConfig{
			Mode:       types.ModePower,
			Units:      types.UnitsPercent,
			HoldCycles: DefaultHoldCycles,
			SupplyMV:   DefaultSupplyMV,
			ADCBits:    DefaultADCBits,
		},
		Display: DisplayConfig{
			Type:     types.DisplayConsole,
			Cells:    DefaultCells,
			SubCells: DefaultSubCells,
			SplashMs: DefaultSplashMs,
			Color:    true,
		},
		Web: WebConfig{
			Port: DefaultWebPort,
		},
		Update: UpdateConfig{
			Repo:          DefaultReleaseRepo,
			IntervalHours: DefaultUpdateHours,
		},
		Silence: SilenceConfig{
			DurationMs: DefaultSilenceDurationMs,
			RecoveryMs: DefaultSilenceRecoveryMs,
		},
		Log: LogConfig{
			Rotate: types.RotationDaily,
		},
		filePath: filePath,
	}
	c.applyDefaults()
	return c
}

// Load reads config from file, creating a default if none exists.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return c.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return util.WrapError("parse config", err)
	}

	c.applyDefaults()

	return c.validate()
}

// applyDefaults sets default values for zero-value fields.
func (c *Config) applyDefaults() {
	// Audio defaults
	if c.Audio.Source == "" {
		c.Audio.Source = types.SourceCapture
	}
	if c.Audio.Format == "" {
		c.Audio.Format = types.FormatS16LE
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = types.SampleRate
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = types.MaxChannels
	}
	if c.Audio.WindowSize == 0 {
		c.Audio.WindowSize = types.WindowSize
	}
	// Meter defaults
	if c.Meter.Mode == "" {
		c.Meter.Mode = types.ModePower
	}
	if c.Meter.Units == "" {
		c.Meter.Units = types.UnitsPercent
	}
	if c.Meter.Reference == 0 {
		c.Meter.Reference = DefaultPercentReference
		if c.Meter.Units == types.UnitsMillivolts {
			c.Meter.Reference = DefaultMillivoltRef
		}
	}
	if c.Meter.RangeDB == 0 {
		c.Meter.RangeDB = DefaultPowerRangeDB
		if c.Meter.Mode == types.ModeVoltage {
			c.Meter.RangeDB = DefaultVoltageRangeDB
		}
	}
	if c.Meter.HoldCycles == 0 {
		c.Meter.HoldCycles = DefaultHoldCycles
	}
	if c.Meter.SupplyMV == 0 {
		c.Meter.SupplyMV = DefaultSupplyMV
	}
	if c.Meter.ADCBits == 0 {
		c.Meter.ADCBits = DefaultADCBits
	}
	// Display defaults
	if c.Display.Type == "" {
		c.Display.Type = types.DisplayConsole
	}
	if c.Display.Cells == 0 {
		c.Display.Cells = DefaultCells
	}
	if c.Display.SubCells == 0 {
		c.Display.SubCells = DefaultSubCells
	}
	if c.Meter.ScaleMax == 0 {
		c.Meter.ScaleMax = c.Display.Cells * c.Display.SubCells
	}
	// Web defaults
	if c.Web.Port == 0 {
		c.Web.Port = DefaultWebPort
	}
	// Update defaults
	if c.Update.Repo == "" {
		c.Update.Repo = DefaultReleaseRepo
	}
	if c.Update.IntervalHours == 0 {
		c.Update.IntervalHours = DefaultUpdateHours
	}
	// Log defaults
	if c.Log.Rotate == "" {
		c.Log.Rotate = types.RotationDaily
	}
}

// saveLocked writes the config to disk. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return util.WrapError("marshal config", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}

	return nil
}

// FilePath returns the path the config was loaded from.
func (c *Config) FilePath() string {
	return c.filePath
}

// AcquireTimeout returns how long to wait for one window; 0 waits forever.
func (c *Config) AcquireTimeout() time.Duration {
	return time.Duration(c.Audio.AcquireTimeoutMs) * time.Millisecond
}

// UpdateInterval returns how often to check for a new release.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.Update.IntervalHours) * time.Hour
}

// S3Configured reports whether level logs should be uploaded.
func (c *Config) S3Configured() bool {
	return util.IsConfigured(c.Log.Dir, c.Log.S3Bucket, c.Log.S3AccessKeyID, c.Log.S3SecretAccessKey)
}
