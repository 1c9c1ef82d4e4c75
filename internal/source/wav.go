package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/oszuidwest/zwfm-levelmeter/internal/audio"
)

// WAV is a Source reading PCM samples from a WAV file.
type WAV struct {
	file     io.Closer
	dec      *wav.Decoder
	buf      *goaudio.IntBuffer
	channels int
	scale    float64
	offset   int

	// interval paces windows at the file's sample rate; 0 reads as fast as possible.
	interval time.Duration
	next     time.Time
	closed   bool
}

// WAVConfig configures a WAV source.
type WAVConfig struct {
	WindowSize int
	// Realtime paces windows at the file's sample rate.
	Realtime bool
}

// OpenWAV opens the WAV file at path.
func OpenWAV(path string, cfg WAVConfig) (*WAV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWAV(f, cfg)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

// NewWAV decodes WAV data from r.
func NewWAV(r io.ReadSeeker, cfg WAVConfig) (*WAV, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("reading WAV PCM data: %w", err)
	}

	format := dec.Format()
	bitDepth := int(dec.SampleBitDepth())
	if bitDepth == 0 || format.NumChannels == 0 {
		return nil, errors.New("WAV file has no bit depth or channels")
	}

	w := &WAV{
		dec: dec,
		buf: &goaudio.IntBuffer{
			Format:         format,
			Data:           make([]int, cfg.WindowSize*format.NumChannels),
			SourceBitDepth: bitDepth,
		},
		channels: format.NumChannels,
		// Normalize to [-0.5, 0.5) like the raw signed formats.
		scale: float64(uint64(1) << bitDepth),
	}
	// 8-bit WAV samples are unsigned.
	if bitDepth == 8 {
		w.offset = 128
	}
	if cfg.Realtime && format.SampleRate > 0 {
		w.interval = time.Duration(cfg.WindowSize) * time.Second / time.Duration(format.SampleRate)
	}
	return w, nil
}

// Channels returns the channel count of the file.
func (s *WAV) Channels() int {
	return s.channels
}

// ReadWindow implements Source. Windows with more channels than the file
// repeat the file's last channel.
func (s *WAV) ReadWindow(ctx context.Context, w *audio.Window) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.pace(ctx); err != nil {
		return err
	}

	s.buf.Data = s.buf.Data[:cap(s.buf.Data)]
	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding WAV: %w", err)
	}

	frames := min(n/s.channels, w.Size)
	if frames == 0 {
		return io.EOF
	}

	for ch := range w.Channels {
		src := min(ch, s.channels-1)
		dst := w.Samples[ch]
		for f := range frames {
			dst[f] = float64(s.buf.Data[f*s.channels+src]-s.offset) / s.scale
		}
	}
	w.Frames = frames
	return nil
}

func (s *WAV) pace(ctx context.Context) error {
	if s.interval == 0 {
		return nil
	}

	now := time.Now()
	if s.next.IsZero() {
		s.next = now
	}
	if wait := s.next.Sub(now); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	s.next = s.next.Add(s.interval)
	return nil
}

// Close releases the underlying file.
func (s *WAV) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
