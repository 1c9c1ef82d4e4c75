// Package meter runs the measurement loop: acquire a window, measure it,
// update peaks, render the bars and hand the results to the outputs.
package meter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oszuidwest/zwfm-levelmeter/internal/audio"
	"github.com/oszuidwest/zwfm-levelmeter/internal/bargraph"
	"github.com/oszuidwest/zwfm-levelmeter/internal/display"
	"github.com/oszuidwest/zwfm-levelmeter/internal/source"
	"github.com/oszuidwest/zwfm-levelmeter/internal/types"
	"github.com/oszuidwest/zwfm-levelmeter/internal/util"
)

// SplashText is shown on the display before metering starts.
const SplashText = "Audio Peak Meter"

// ErrSourceExhausted is returned by Run when the source keeps failing.
var ErrSourceExhausted = errors.New("sample source failed too many times")

// Publisher receives every frame. The frame and its slices are reused by
// the next cycle, so publishers must not retain them after Publish returns.
type Publisher interface {
	Publish(f *types.Frame) error
}

// SourceFactory opens a new sample source. It is called again after the
// previous source failed.
type SourceFactory func(ctx context.Context) (source.Source, error)

// Config holds the fixed settings of a meter.
type Config struct {
	Channels    int
	WindowSize  int
	Units       types.Units
	Accumulator audio.AccumulatorConfig
	Mapper      audio.LevelMapper
	HoldCycles  int
	Renderer    bargraph.Renderer
	Silence     audio.SilenceConfig
	// SplashDuration shows SplashText before the first window; 0 skips it.
	SplashDuration time.Duration

	// Restart policy; zero values use the types defaults.
	RetryInitial     time.Duration
	RetryMax         time.Duration
	MaxRetries       int
	SuccessThreshold time.Duration
}

// Meter owns all per-channel state and runs on a single goroutine.
type Meter struct {
	cfg        Config
	open       SourceFactory
	sink       display.Sink
	publishers []Publisher
	now        func() time.Time

	acc      *audio.Accumulator
	peaks    *audio.PeakHolder
	silence  *audio.SilenceDetector
	window   *audio.Window
	readings []audio.Reading
	levels   []int
	frame    types.Frame
	backoff  *util.Backoff

	cycles     atomic.Uint64
	dropped    atomic.Uint64
	sinkErrors atomic.Uint64

	mu         sync.RWMutex
	state      types.MeterState
	startTime  time.Time
	lastError  string
	retryCount int
}

// New creates a meter reading from sources opened by open.
func New(cfg Config, open SourceFactory, sink display.Sink, publishers ...Publisher) *Meter {
	cfg.Channels = min(max(cfg.Channels, 1), types.MaxChannels)
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = types.InitialRetryDelay
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = types.MaxRetryDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = types.MaxRetries
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = types.SuccessThreshold
	}
	if sink == nil {
		sink = display.Discard{}
	}

	m := &Meter{
		cfg:        cfg,
		open:       open,
		sink:       sink,
		publishers: publishers,
		now:        time.Now,
		acc:        audio.NewAccumulator(cfg.Accumulator),
		peaks:      audio.NewPeakHolder(cfg.Mapper, cfg.HoldCycles),
		silence:    audio.NewSilenceDetector(),
		window:     audio.NewWindow(cfg.Channels, cfg.WindowSize),
		readings:   make([]audio.Reading, 0, cfg.Channels),
		levels:     make([]int, cfg.Channels),
		backoff:    util.NewBackoff(cfg.RetryInitial, cfg.RetryMax),
		state:      types.StateStopped,
	}

	m.frame = types.Frame{
		Units:    cfg.Units,
		ScaleMax: cfg.Mapper.ScaleMax,
		Channels: make([]types.ChannelFrame, cfg.Channels),
	}
	for ch := range m.frame.Channels {
		m.frame.Channels[ch].Glyphs = make([]byte, 0, cfg.Renderer.Cells)
	}
	return m
}

// Run measures windows until ctx is done or the source ends. Cancellation
// is only observed between windows. It returns nil on a clean stop and
// ErrSourceExhausted when the source failed MaxRetries times in a row.
func (m *Meter) Run(ctx context.Context) error {
	defer m.setState(types.StateStopped)

	m.showSplash(ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}

		m.setState(types.StateStarting)
		startTime := m.now()
		err := m.runSource(ctx)
		if err == nil {
			return nil
		}

		runDuration := m.now().Sub(startTime)
		if giveUp := m.recordFailure(err, runDuration); giveUp {
			slog.Error("sample source failed, giving up", "attempts", m.cfg.MaxRetries)
			return fmt.Errorf("%w: %w", ErrSourceExhausted, err)
		}

		slog.Info("source stopped, waiting before restart",
			"attempt", m.retries()+1, "max_retries", m.cfg.MaxRetries)
		if err := m.backoff.Wait(ctx); err != nil {
			return nil
		}
	}
}

// runSource opens one source and measures windows from it. It returns nil
// when the source ended or ctx was cancelled.
func (m *Meter) runSource(ctx context.Context) error {
	src, err := m.open(ctx)
	if err != nil {
		return util.WrapError("open sample source", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			slog.Warn("failed to close sample source", "error", err)
		}
	}()

	m.mu.Lock()
	m.state = types.StateRunning
	m.startTime = m.now()
	m.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return nil
		}

		err := src.ReadWindow(ctx, m.window)
		switch {
		case err == nil:
			m.cycle()
		case errors.Is(err, io.EOF):
			slog.Info("sample source ended")
			return nil
		case ctx.Err() != nil:
			return nil
		case source.IsTransient(err):
			m.dropped.Add(1)
			slog.Warn("dropped window", "error", err)
		default:
			return err
		}
	}
}

// recordFailure updates the retry bookkeeping and reports whether to give up.
func (m *Meter) recordFailure(err error, runDuration time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastError = err.Error()
	slog.Error("sample source error", "error", err)

	if runDuration >= m.cfg.SuccessThreshold {
		m.retryCount = 0
		m.backoff.Reset()
	}
	m.retryCount++

	if m.retryCount >= m.cfg.MaxRetries {
		m.lastError = fmt.Sprintf("Stopped after %d failed attempts: %s", m.cfg.MaxRetries, err)
		return true
	}
	return false
}

// cycle processes the window that was just read.
func (m *Meter) cycle() {
	now := m.now()
	n := m.cycles.Add(1)

	m.readings = m.acc.Process(m.window, m.readings)
	m.peaks.Update(m.readings)

	var duty float64
	for ch, r := range m.readings {
		st := m.peaks.Channel(ch)
		level := m.cfg.Mapper.Level(r.AC)
		m.levels[ch] = level

		fc := &m.frame.Channels[ch]
		fc.Glyphs = m.cfg.Renderer.Render(level, st.PeakLevel, fc.Glyphs)
		if err := m.sink.WriteRow(ch, fc.Glyphs); err != nil {
			m.sinkErrors.Add(1)
			slog.Warn("display write failed", "row", ch, "error", err)
		}

		fc.DC = st.DC
		fc.AC = st.AC
		fc.Peak = st.Peak
		fc.Level = level
		fc.PeakLevel = st.PeakLevel
		duty += r.ACFraction

		slog.Debug("reading", "cycle", n, "channel", ch, "dc", st.DC, "ac", st.AC,
			"peak", st.Peak, "level", level, "peak_level", st.PeakLevel)
	}

	duty /= float64(len(m.readings))
	if err := m.sink.SetBrightness(duty); err != nil {
		m.sinkErrors.Add(1)
		slog.Warn("brightness write failed", "error", err)
	}

	m.frame.Timestamp = now
	m.frame.Cycle = n
	m.frame.Brightness = duty
	m.updateSilence(now)

	for _, p := range m.publishers {
		if err := p.Publish(&m.frame); err != nil {
			slog.Warn("failed to publish frame", "error", err)
		}
	}
}

func (m *Meter) updateSilence(now time.Time) {
	if !m.cfg.Silence.Enabled() {
		return
	}

	ev := m.silence.Update(m.levels, m.cfg.Silence, now)
	m.frame.Silence = ev.InSilence
	m.frame.SilenceDurationMs = ev.DurationMs
	m.frame.SilenceLevel = ev.Level

	if ev.JustEntered {
		slog.Warn("silence detected", "duration_ms", ev.DurationMs, "threshold_level", m.cfg.Silence.ThresholdLevel)
	}
	if ev.JustRecovered {
		slog.Info("silence recovered", "total_duration_ms", ev.TotalDurationMs)
	}
}

func (m *Meter) showSplash(ctx context.Context) {
	if m.cfg.SplashDuration <= 0 {
		return
	}
	sp, ok := m.sink.(display.Splasher)
	if !ok {
		return
	}
	if err := sp.Splash(SplashText); err != nil {
		slog.Warn("failed to show splash", "error", err)
		return
	}

	timer := time.NewTimer(m.cfg.SplashDuration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (m *Meter) setState(s types.MeterState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

func (m *Meter) retries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.retryCount
}

// Status returns a snapshot of the meter's runtime counters.
// It is safe to call from any goroutine.
func (m *Meter) Status() types.MeterStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var uptime string
	if m.state == types.StateRunning {
		uptime = util.FormatDuration(m.now().Sub(m.startTime))
	}

	return types.MeterStatus{
		State:            m.state,
		Uptime:           uptime,
		LastError:        m.lastError,
		Cycles:           m.cycles.Load(),
		DroppedWindows:   m.dropped.Load(),
		SinkErrors:       m.sinkErrors.Load(),
		SourceRetryCount: m.retryCount,
		SourceMaxRetries: m.cfg.MaxRetries,
	}
}
