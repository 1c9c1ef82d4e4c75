package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/oszuidwest/zwfm-levelmeter/internal/audio"
	"github.com/oszuidwest/zwfm-levelmeter/internal/bargraph"
	"github.com/oszuidwest/zwfm-levelmeter/internal/config"
	"github.com/oszuidwest/zwfm-levelmeter/internal/display"
	"github.com/oszuidwest/zwfm-levelmeter/internal/levellog"
	"github.com/oszuidwest/zwfm-levelmeter/internal/meter"
	"github.com/oszuidwest/zwfm-levelmeter/internal/source"
	"github.com/oszuidwest/zwfm-levelmeter/internal/types"
	"github.com/oszuidwest/zwfm-levelmeter/internal/util"
)

// meterConfig maps the loaded configuration onto the meter settings.
func meterConfig(cfg *config.Config) meter.Config {
	return meter.Config{
		Channels:   cfg.Audio.Channels,
		WindowSize: cfg.Audio.WindowSize,
		Units:      cfg.Meter.Units,
		Accumulator: audio.AccumulatorConfig{
			Mode:        cfg.Meter.Mode,
			Format:      cfg.Audio.Format,
			Units:       cfg.Meter.Units,
			SupplyMV:    cfg.Meter.SupplyMV,
			ADCBits:     cfg.Meter.ADCBits,
			RoundCounts: cfg.Meter.RoundCounts,
		},
		Mapper: audio.LevelMapper{
			Reference: cfg.Meter.Reference,
			RangeDB:   cfg.Meter.RangeDB,
			ScaleMax:  cfg.Meter.ScaleMax,
		},
		HoldCycles: cfg.Meter.HoldCycles,
		Renderer: bargraph.Renderer{
			Cells:      cfg.Display.Cells,
			SubCells:   cfg.Display.SubCells,
			ScaleMax:   cfg.Meter.ScaleMax,
			TickStride: cfg.Display.TickStride,
		},
		Silence: audio.SilenceConfig{
			ThresholdLevel: cfg.Silence.ThresholdLevel,
			DurationMs:     cfg.Silence.DurationMs,
			RecoveryMs:     cfg.Silence.RecoveryMs,
		},
		SplashDuration: time.Duration(cfg.Display.SplashMs) * time.Millisecond,
	}
}

// streamConfig returns the raw stream settings shared by process sources.
func streamConfig(cfg *config.Config) source.StreamConfig {
	return source.StreamConfig{
		Format:     cfg.Audio.Format,
		Channels:   cfg.Audio.Channels,
		WindowSize: cfg.Audio.WindowSize,
		Timeout:    cfg.AcquireTimeout(),
	}
}

// sourceFactory returns a factory opening the configured sample source.
func sourceFactory(cfg *config.Config) meter.SourceFactory {
	switch cfg.Audio.Source {
	case types.SourceWAV:
		return func(context.Context) (source.Source, error) {
			return source.OpenWAV(cfg.Audio.WAVPath, source.WAVConfig{
				WindowSize: cfg.Audio.WindowSize,
				Realtime:   cfg.Audio.Realtime,
			})
		}

	case types.SourceCommand:
		return func(context.Context) (source.Source, error) {
			return source.StartProcess(cfg.Audio.Command, cfg.Audio.Args, streamConfig(cfg))
		}

	default:
		return func(context.Context) (source.Source, error) {
			ffmpegPath := util.ResolveCommand(cfg.Audio.FFmpegPath, "ffmpeg")
			name, args, err := audio.BuildCaptureCommand(cfg.Audio.Input, ffmpegPath, audio.CaptureParams{
				SampleRate: cfg.Audio.SampleRate,
				Channels:   cfg.Audio.Channels,
				Format:     cfg.Audio.Format,
			})
			if err != nil {
				return nil, util.WrapError("build capture command", err)
			}
			return source.StartProcess(name, args, streamConfig(cfg))
		}
	}
}

// newSink builds the display sinks. The console writes to out.
func newSink(cfg *config.Config, out io.Writer) display.Sink {
	var sinks display.Multi

	if cfg.Display.Type == types.DisplayConsole {
		sinks = append(sinks, display.NewConsole(out, display.ConsoleConfig{
			Rows:     cfg.Audio.Channels,
			SubCells: cfg.Display.SubCells,
			Color:    cfg.Display.Color,
		}))
	}

	if cfg.LED.PeriodNs > 0 {
		led, err := display.NewLED(display.LEDConfig{
			Chip:     cfg.LED.PWMChip,
			Channel:  cfg.LED.PWMChannel,
			PeriodNs: cfg.LED.PeriodNs,
		})
		if err != nil {
			slog.Warn("LED disabled", "error", err)
		} else {
			slog.Info("LED enabled", "chip", cfg.LED.PWMChip, "channel", cfg.LED.PWMChannel)
			sinks = append(sinks, led)
		}
	}

	if len(sinks) == 0 {
		return display.Discard{}
	}
	return sinks
}

// levelLog is the level logger plus its optional S3 uploader.
type levelLog struct {
	logger   *levellog.Logger
	uploader *levellog.Uploader
}

// newLevelLog opens the level log when a directory is configured.
// It returns nil when logging is disabled.
func newLevelLog(cfg *config.Config) (*levelLog, error) {
	if cfg.Log.Dir == "" {
		return nil, nil
	}
	if err := util.CheckDirWritable(cfg.Log.Dir); err != nil {
		return nil, err
	}

	ll := &levelLog{}
	lcfg := levellog.Config{
		Dir:    cfg.Log.Dir,
		Rotate: cfg.Log.Rotate,
	}

	if cfg.S3Configured() {
		u, err := levellog.NewUploader(&levellog.S3Config{
			Endpoint:        cfg.Log.S3Endpoint,
			Bucket:          cfg.Log.S3Bucket,
			Prefix:          cfg.Log.S3Prefix,
			AccessKeyID:     cfg.Log.S3AccessKeyID,
			SecretAccessKey: cfg.Log.S3SecretAccessKey,
			RemoveLocal:     cfg.Log.S3RemoveLocal,
		})
		if err != nil {
			return nil, err
		}
		ll.uploader = u
		lcfg.Archive = u
	}

	logger, err := levellog.New(lcfg)
	if err != nil {
		if ll.uploader != nil {
			err = errors.Join(err, ll.uploader.Close())
		}
		return nil, err
	}
	ll.logger = logger

	slog.Info("level log enabled", "dir", cfg.Log.Dir, "rotate", cfg.Log.Rotate, "s3", ll.uploader != nil)
	return ll, nil
}

// Close flushes the current file and waits for pending uploads.
func (l *levelLog) Close() error {
	var errs []error
	if err := l.logger.Close(); err != nil {
		errs = append(errs, err)
	}
	if l.uploader != nil {
		if err := l.uploader.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// defaultConfigPath returns config.json next to the running binary.
func defaultConfigPath() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", util.WrapError("get executable path", err)
	}
	return filepath.Join(filepath.Dir(execPath), "config.json"), nil
}
