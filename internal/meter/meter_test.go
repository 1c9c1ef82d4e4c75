package meter

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/oszuidwest/zwfm-levelmeter/internal/audio"
	"github.com/oszuidwest/zwfm-levelmeter/internal/bargraph"
	"github.com/oszuidwest/zwfm-levelmeter/internal/source"
	"github.com/oszuidwest/zwfm-levelmeter/internal/types"
)

// step is one ReadWindow result: an error, or a window of alternating ±amp.
type step struct {
	amp float64
	err error
}

type fakeSource struct {
	steps  []step
	end    error
	closed bool
}

func (s *fakeSource) ReadWindow(_ context.Context, w *audio.Window) error {
	if len(s.steps) == 0 {
		if s.end != nil {
			return s.end
		}
		return io.EOF
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	if st.err != nil {
		return st.err
	}
	for ch := range w.Channels {
		for i := range w.Size {
			if i%2 == 0 {
				w.Samples[ch][i] = st.amp
			} else {
				w.Samples[ch][i] = -st.amp
			}
		}
	}
	w.Frames = w.Size
	return nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

// blockingSource blocks until the context is done.
type blockingSource struct{}

func (blockingSource) ReadWindow(ctx context.Context, _ *audio.Window) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingSource) Close() error { return nil }

type fakeSink struct {
	mu         sync.Mutex
	rows       map[int][][]byte
	brightness []float64
	splash     []string
	err        error
}

func (s *fakeSink) WriteRow(row int, glyphs []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rows == nil {
		s.rows = map[int][][]byte{}
	}
	s.rows[row] = append(s.rows[row], slices.Clone(glyphs))
	return s.err
}

func (s *fakeSink) SetBrightness(duty float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brightness = append(s.brightness, duty)
	return s.err
}

func (s *fakeSink) Splash(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.splash = append(s.splash, text)
	return nil
}

func (s *fakeSink) Close() error { return nil }

type fakePublisher struct {
	frames []types.Frame
}

func (p *fakePublisher) Publish(f *types.Frame) error {
	cp := *f
	cp.Channels = slices.Clone(f.Channels)
	p.frames = append(p.frames, cp)
	return nil
}

func testConfig() Config {
	return Config{
		Channels:   2,
		WindowSize: 8,
		Units:      types.UnitsPercent,
		Accumulator: audio.AccumulatorConfig{
			Mode:   types.ModePower,
			Format: types.FormatS16LE,
			Units:  types.UnitsPercent,
		},
		Mapper:       audio.LevelMapper{Reference: 50, RangeDB: 40, ScaleMax: 32},
		HoldCycles:   16,
		Renderer:     bargraph.Renderer{Cells: 16, SubCells: 2, ScaleMax: 32},
		RetryInitial: time.Millisecond,
		RetryMax:     time.Millisecond,
	}
}

func openOnce(src source.Source) SourceFactory {
	return func(context.Context) (source.Source, error) { return src, nil }
}

func TestRunEndsOnEOF(t *testing.T) {
	src := &fakeSource{steps: []step{{amp: 0.5}, {amp: 0.25}, {amp: 0.1}}}
	sink := &fakeSink{}
	pub := &fakePublisher{}

	m := New(testConfig(), openOnce(src), sink, pub)
	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !src.closed {
		t.Error("source not closed")
	}
	if got := m.Status().Cycles; got != 3 {
		t.Errorf("Cycles = %d, want 3", got)
	}
	if len(sink.rows[0]) != 3 || len(sink.rows[1]) != 3 {
		t.Errorf("rows written = %d/%d, want 3/3", len(sink.rows[0]), len(sink.rows[1]))
	}
	if len(pub.frames) != 3 {
		t.Fatalf("frames published = %d, want 3", len(pub.frames))
	}
	if m.Status().State != types.StateStopped {
		t.Errorf("State = %s, want stopped", m.Status().State)
	}
}

func TestRunFrameContents(t *testing.T) {
	src := &fakeSource{steps: []step{{amp: 0.5}, {amp: 0.05}}}
	sink := &fakeSink{}
	pub := &fakePublisher{}
	cfg := testConfig()

	m := New(cfg, openOnce(src), sink, pub)
	_ = m.Run(context.Background())

	first, second := pub.frames[0], pub.frames[1]

	// amp 0.5 on a normalized format is 50 % of full scale, the reference.
	if got := first.Channels[0]; got.AC != 50 || got.Level != 32 || got.PeakLevel != 32 {
		t.Errorf("first frame channel 0 = %+v", got)
	}
	if first.Brightness != 0.5 {
		t.Errorf("Brightness = %v, want 0.5", first.Brightness)
	}

	// The peak is held while the level drops.
	got := second.Channels[1]
	if got.Peak != 50 || got.PeakLevel != 32 {
		t.Errorf("second frame peak = %v/%d, want 50/32", got.Peak, got.PeakLevel)
	}
	if want := cfg.Mapper.Level(5); got.Level != want {
		t.Errorf("second frame level = %d, want %d", got.Level, want)
	}

	want := cfg.Renderer.Render(got.Level, got.PeakLevel, nil)
	if !slices.Equal(sink.rows[1][1], want) {
		t.Errorf("row = %v, want %v", sink.rows[1][1], want)
	}
}

func TestRunDropsTransientFailures(t *testing.T) {
	src := &fakeSource{steps: []step{
		{amp: 0.1},
		{err: source.ErrTimeout},
		{err: source.ErrOverflow},
		{amp: 0.1},
	}}

	m := New(testConfig(), openOnce(src), nil)
	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	st := m.Status()
	if st.Cycles != 2 || st.DroppedWindows != 2 {
		t.Errorf("Cycles = %d, DroppedWindows = %d, want 2, 2", st.Cycles, st.DroppedWindows)
	}
}

func TestRunContinuesAfterSinkErrors(t *testing.T) {
	src := &fakeSource{steps: []step{{amp: 0.1}, {amp: 0.2}}}
	sink := &fakeSink{err: errors.New("bus error")}

	m := New(testConfig(), openOnce(src), sink)
	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	st := m.Status()
	if st.Cycles != 2 {
		t.Errorf("Cycles = %d, want 2", st.Cycles)
	}
	// Two rows and one brightness write per cycle.
	if st.SinkErrors != 6 {
		t.Errorf("SinkErrors = %d, want 6", st.SinkErrors)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	m := New(testConfig(), openOnce(blockingSource{}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestRunRestartsFailedSource(t *testing.T) {
	opened := 0
	open := func(context.Context) (source.Source, error) {
		opened++
		if opened == 1 {
			return &fakeSource{steps: []step{{amp: 0.1}}, end: errors.New("arecord exited")}, nil
		}
		return &fakeSource{steps: []step{{amp: 0.1}}}, nil
	}

	m := New(testConfig(), open, nil)
	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if opened != 2 {
		t.Errorf("opened = %d, want 2", opened)
	}
	st := m.Status()
	if st.Cycles != 2 || st.SourceRetryCount != 1 || st.LastError != "arecord exited" {
		t.Errorf("status = %+v", st)
	}
}

func TestRunGivesUp(t *testing.T) {
	opened := 0
	open := func(context.Context) (source.Source, error) {
		opened++
		return nil, errors.New("no device")
	}

	cfg := testConfig()
	cfg.MaxRetries = 3
	m := New(cfg, open, nil)

	err := m.Run(context.Background())
	if !errors.Is(err, ErrSourceExhausted) {
		t.Fatalf("Run() error = %v, want ErrSourceExhausted", err)
	}
	if opened != 3 {
		t.Errorf("opened = %d, want 3", opened)
	}
}

func TestRunShowsSplash(t *testing.T) {
	cfg := testConfig()
	cfg.SplashDuration = time.Millisecond
	sink := &fakeSink{}

	m := New(cfg, openOnce(&fakeSource{}), sink)
	_ = m.Run(context.Background())

	if len(sink.splash) != 1 || sink.splash[0] != SplashText {
		t.Errorf("splash = %v, want [%q]", sink.splash, SplashText)
	}
}

func TestRunReportsSilence(t *testing.T) {
	cfg := testConfig()
	cfg.Silence = audio.SilenceConfig{ThresholdLevel: 4}
	pub := &fakePublisher{}

	m := New(cfg, openOnce(&fakeSource{steps: []step{{amp: 0}, {amp: 0.5}}}), nil, pub)
	_ = m.Run(context.Background())

	if !pub.frames[0].Silence || pub.frames[0].SilenceLevel != types.SilenceLevelActive {
		t.Errorf("first frame silence = %v/%q, want active", pub.frames[0].Silence, pub.frames[0].SilenceLevel)
	}
	if pub.frames[1].Silence {
		t.Error("second frame still reports silence with zero recovery time")
	}
}
