// Package main provides an audio level meter that measures a live sample
// stream and draws per-channel peak-hold bar graphs.
//
// Usage:
//
//	zwfm-levelmeter [-c path/to/config.json] [--debug]
//	zwfm-levelmeter list-devices
//	zwfm-levelmeter version
//
// If -c is not specified, the meter looks for config.json in the same
// directory as the binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/integrii/flaggy"

	"github.com/oszuidwest/zwfm-levelmeter/internal/audio"
	"github.com/oszuidwest/zwfm-levelmeter/internal/config"
	"github.com/oszuidwest/zwfm-levelmeter/internal/meter"
	"github.com/oszuidwest/zwfm-levelmeter/internal/server"
	"github.com/oszuidwest/zwfm-levelmeter/internal/types"
	"github.com/oszuidwest/zwfm-levelmeter/internal/util"
)

// httpShutdownTimeout bounds how long open HTTP connections may delay shutdown.
const httpShutdownTimeout = 10 * time.Second

func main() {
	var (
		configPath string
		debug      bool
	)

	parser := flaggy.NewParser(AppName)
	parser.Description = "Audio level meter with peak-hold bar graphs"
	parser.Version = Version

	listDevicesCmd := flaggy.Subcommand{
		Name:        "list-devices",
		ShortName:   "ld",
		Description: "list audio capture devices for this platform",
	}
	parser.AttachSubcommand(&listDevicesCmd, 1)

	versionCmd := flaggy.Subcommand{
		Name:        "version",
		Description: "print version information",
	}
	parser.AttachSubcommand(&versionCmd, 1)

	parser.String(&configPath, "c", "config", "path to config file (default: config.json next to binary)")
	parser.Bool(&debug, "", "debug", "log every measurement cycle")

	if err := parser.Parse(); err != nil {
		slog.Error("failed to parse arguments", "error", err)
		os.Exit(1)
	}

	if debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	switch {
	case versionCmd.Used:
		fmt.Printf("%s %s (commit %s, built %s)\n", AppName, Version, Commit, util.FormatHumanTime(BuildTime))
		return

	case listDevicesCmd.Used:
		devices := audio.Devices()
		if len(devices) == 0 {
			fmt.Println("no audio input devices found")
			return
		}
		for _, d := range devices {
			fmt.Printf("- %s (%s)\n", d.Name, d.ID)
		}
		return
	}

	if err := run(configPath); err != nil {
		slog.Error("level meter stopped with error", "error", err)
		os.Exit(1)
	}
}

// run loads the configuration, wires the pipeline and meters until a
// shutdown signal arrives or the source ends.
func run(configPath string) error {
	if configPath == "" {
		p, err := defaultConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	slog.Info("using config file", "path", configPath)

	cfg := config.New(configPath)
	if err := cfg.Load(); err != nil {
		return util.WrapError("load config", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), util.ShutdownSignals()...)
	defer stop()

	sink := newSink(cfg, os.Stdout)

	var publishers []meter.Publisher
	ll, err := newLevelLog(cfg)
	if err != nil {
		slog.Error("level log disabled", "error", err)
	} else if ll != nil {
		publishers = append(publishers, ll.logger)
	}

	var (
		hub     *server.Hub
		updates *UpdateChecker
		httpSrv *http.Server
		m       *meter.Meter
	)
	// The hub publishes frames, so it exists before the meter it reports on.
	if cfg.Web.Enabled {
		hub = server.NewHub(func() types.MeterStatus { return m.Status() })
		publishers = append(publishers, hub)
	}

	m = meter.New(meterConfig(cfg), sourceFactory(cfg), sink, publishers...)

	if cfg.Update.Enabled {
		updates = NewUpdateChecker(cfg.Update.Repo, cfg.UpdateInterval())
		go updates.Run(ctx)
	}
	if cfg.Web.Enabled {
		httpSrv = NewServer(cfg.Web.Port, hub, m.Status, updates).Start()
	}

	slog.Info("starting meter",
		"version", Version,
		"source", cfg.Audio.Source,
		"format", cfg.Audio.Format,
		"channels", cfg.Audio.Channels,
		"window_size", cfg.Audio.WindowSize,
		"mode", cfg.Meter.Mode,
		"units", cfg.Meter.Units)

	runErr := m.Run(ctx)

	slog.Info("shutting down")

	stop()
	errs := []error{runErr}
	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, util.WrapError("shut down HTTP server", err))
		}
	}
	if err := sink.Close(); err != nil {
		errs = append(errs, util.WrapError("close display", err))
	}
	if ll != nil {
		if err := ll.Close(); err != nil {
			errs = append(errs, util.WrapError("close level log", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}
