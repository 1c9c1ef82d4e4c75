package levellog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/oszuidwest/zwfm-levelmeter/internal/types"
)

type recordingArchive struct {
	mu    sync.Mutex
	paths []string
}

func (a *recordingArchive) Enqueue(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paths = append(a.paths, path)
}

func frameAt(ts time.Time, cycle uint64, levels ...int) *types.Frame {
	f := &types.Frame{Timestamp: ts, Cycle: cycle}
	for _, l := range levels {
		f.Channels = append(f.Channels, types.ChannelFrame{AC: float64(l), Level: l, PeakLevel: l})
	}
	return f
}

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("invalid line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestLoggerWritesOneEntryPerChannel(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Dir: dir, Rotate: types.RotationDaily})
	if err != nil {
		t.Fatal(err)
	}

	ts := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	if err := l.Publish(frameAt(ts, 1, 12, 20)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	path := l.Path()
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	if want := filepath.Join(dir, "levels-2026-03-01.jsonl"); path != want {
		t.Errorf("Path() = %q, want %q", path, want)
	}

	entries := readEntries(t, path)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	details := entries[1]["details"].(map[string]any)
	if details["channel"] != 1.0 || details["level"] != 20.0 {
		t.Errorf("second entry details = %v", details)
	}
	if entries[0]["type"] != string(Level) {
		t.Errorf("type = %v, want %s", entries[0]["type"], Level)
	}
}

func TestLoggerRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	archive := &recordingArchive{}
	l, err := New(Config{Dir: dir, Rotate: types.RotationHourly, Archive: archive})
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	_ = l.Publish(frameAt(base, 1, 1))
	_ = l.Publish(frameAt(base.Add(30*time.Second), 2, 1))
	_ = l.Publish(frameAt(base.Add(2*time.Minute), 3, 1))

	first := filepath.Join(dir, "levels-2026-03-01T10.jsonl")
	second := filepath.Join(dir, "levels-2026-03-01T11.jsonl")

	if len(archive.paths) != 1 || archive.paths[0] != first {
		t.Errorf("archived %v, want [%s]", archive.paths, first)
	}
	if l.Path() != second {
		t.Errorf("Path() = %q, want %q", l.Path(), second)
	}
	if got := len(readEntries(t, first)); got != 2 {
		t.Errorf("first file has %d entries, want 2", got)
	}

	_ = l.Close()
	if len(archive.paths) != 2 || archive.paths[1] != second {
		t.Errorf("Close() did not archive the current file: %v", archive.paths)
	}
}

func TestLoggerSilenceEvents(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	silent := frameAt(ts, 1, 0)
	silent.Silence = true
	silent.SilenceDurationMs = 15000
	_ = l.Publish(silent)

	still := frameAt(ts.Add(time.Second), 2, 0)
	still.Silence = true
	still.SilenceDurationMs = 16000
	_ = l.Publish(still)

	_ = l.Publish(frameAt(ts.Add(2*time.Second), 3, 10))

	var events []map[string]any
	for _, e := range readEntries(t, l.Path()) {
		if e["type"] != string(Level) {
			events = append(events, e)
		}
	}

	if len(events) != 2 {
		t.Fatalf("got %d silence events, want 2", len(events))
	}
	if events[0]["type"] != string(SilenceStart) || events[1]["type"] != string(SilenceEnd) {
		t.Errorf("events = %v", events)
	}
	if d := events[1]["details"].(map[string]any)["duration_ms"]; d != 16000.0 {
		t.Errorf("silence_end duration = %v, want 16000", d)
	}
}
