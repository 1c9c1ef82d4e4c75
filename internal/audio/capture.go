package audio

import (
	"errors"
	"strconv"

	"github.com/oszuidwest/zwfm-levelmeter/internal/types"
)

// ErrNoAudioDevice is returned when no audio input device is available.
var ErrNoAudioDevice = errors.New("no audio input device found")

// CaptureParams describes the raw stream a capture command must produce.
type CaptureParams struct {
	SampleRate int
	Channels   int
	Format     types.SampleFormat
}

// CaptureConfig defines platform-specific audio capture configuration.
type CaptureConfig struct {
	// Command is the executable name (e.g., "arecord", "ffmpeg").
	Command string

	// DefaultDevice is used when no device is configured.
	DefaultDevice string

	// UsesFFmpeg indicates if this platform uses FFmpeg for capture.
	UsesFFmpeg bool

	// BuildArgs returns the command arguments for audio capture.
	BuildArgs func(device string, p CaptureParams) []string
}

// BuildCaptureCommand returns the command and arguments for audio capture.
// If device is empty, it attempts to use the default or auto-detect.
// The ffmpegPath parameter is used on platforms that use FFmpeg for capture.
func BuildCaptureCommand(device, ffmpegPath string, p CaptureParams) (cmd string, args []string, err error) {
	cfg := getPlatformConfig()

	if device == "" {
		device = cfg.DefaultDevice
	}

	// Auto-detect if still empty (Windows has no safe default).
	if device == "" {
		devices := cfg.Devices()
		if len(devices) == 0 {
			return "", nil, ErrNoAudioDevice
		}
		device = devices[0].ID
	}

	command := cfg.Command
	if cfg.UsesFFmpeg && ffmpegPath != "" {
		command = ffmpegPath
	}

	return command, cfg.BuildArgs(device, p), nil
}

// arecordFormat returns the arecord -f name of a sample format.
func arecordFormat(f types.SampleFormat) string {
	switch f {
	case types.FormatS8:
		return "S8"
	case types.FormatU16LE:
		return "U16_LE"
	default:
		return "S16_LE"
	}
}

// ffmpegOutputArgs returns the raw output arguments shared by all FFmpeg platforms.
func ffmpegOutputArgs(p CaptureParams) []string {
	return []string{
		"-vn",
		"-f", string(p.Format),
		"-ac", strconv.Itoa(p.Channels),
		"-ar", strconv.Itoa(p.SampleRate),
		"pipe:1",
	}
}
