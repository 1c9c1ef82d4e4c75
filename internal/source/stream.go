package source

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oszuidwest/zwfm-levelmeter/internal/audio"
	"github.com/oszuidwest/zwfm-levelmeter/internal/types"
)

// DefaultQueueSize is the number of complete windows buffered between the
// reader goroutine and the meter loop.
const DefaultQueueSize = 2

// StreamConfig describes the raw sample stream.
type StreamConfig struct {
	Format     types.SampleFormat
	Channels   int
	WindowSize int
	// Timeout bounds how long ReadWindow waits for a window; 0 waits forever.
	Timeout time.Duration
	// QueueSize is the number of windows buffered; 0 uses DefaultQueueSize.
	QueueSize int
}

// Stream reads interleaved raw samples from an io.Reader on its own
// goroutine and hands out complete windows. When the consumer falls behind,
// the oldest queued window is dropped.
type Stream struct {
	format      types.SampleFormat
	timeout     time.Duration
	windowBytes int

	windows    chan []byte
	free       chan []byte
	overflowed atomic.Bool
	dropped    atomic.Uint64

	done chan struct{}
	err  error // terminal reader error, valid once done is closed

	closed    chan struct{}
	closeOnce sync.Once
	closer    func() error
}

// NewStream starts reading r. If r implements io.Closer it is closed by Close,
// which unblocks the reader goroutine. Otherwise the caller must make r
// return (close or drain it) after Close, or the goroutine stays blocked in Read.
func NewStream(r io.Reader, cfg StreamConfig) *Stream {
	var closer func() error
	if c, ok := r.(io.Closer); ok {
		closer = c.Close
	}
	return newStream(r, cfg, nil, closer)
}

// newStream starts the reader goroutine. finish, when set, maps the terminal
// read error to the error reported to the consumer.
func newStream(r io.Reader, cfg StreamConfig, finish func(error) error, closer func() error) *Stream {
	queue := cfg.QueueSize
	if queue <= 0 {
		queue = DefaultQueueSize
	}
	channels := min(max(cfg.Channels, 1), types.MaxChannels)

	s := &Stream{
		format:      cfg.Format,
		timeout:     cfg.Timeout,
		windowBytes: cfg.WindowSize * channels * cfg.Format.BytesPerSample(),
		windows:     make(chan []byte, queue),
		free:        make(chan []byte, queue+1),
		done:        make(chan struct{}),
		closed:      make(chan struct{}),
		closer:      closer,
	}

	go s.readLoop(r, finish)
	return s
}

func (s *Stream) readLoop(r io.Reader, finish func(error) error) {
	defer close(s.done)

	for {
		buf := s.buffer()
		n, err := io.ReadFull(r, buf)

		if n > 0 && (err == nil || errors.Is(err, io.ErrUnexpectedEOF)) {
			s.enqueue(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				err = io.EOF
			}
			if finish != nil {
				err = finish(err)
			}
			s.err = err
			return
		}
	}
}

// enqueue hands buf to the consumer, dropping the oldest window if the
// queue is full. There is a single producer, so the final send cannot block.
func (s *Stream) enqueue(buf []byte) {
	select {
	case s.windows <- buf:
		return
	default:
	}

	select {
	case old := <-s.windows:
		s.recycle(old)
		s.dropped.Add(1)
		s.overflowed.Store(true)
	default:
	}
	s.windows <- buf
}

func (s *Stream) buffer() []byte {
	select {
	case buf := <-s.free:
		return buf[:s.windowBytes]
	default:
		return make([]byte, s.windowBytes)
	}
}

func (s *Stream) recycle(buf []byte) {
	select {
	case s.free <- buf:
	default:
	}
}

// ReadWindow implements Source.
func (s *Stream) ReadWindow(ctx context.Context, w *audio.Window) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	if s.overflowed.Swap(false) {
		return ErrOverflow
	}

	var timeout <-chan time.Time
	if s.timeout > 0 {
		timer := time.NewTimer(s.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case buf := <-s.windows:
		s.decode(buf, w)
		return nil
	case <-s.done:
		// Windows queued before the reader stopped are still delivered.
		select {
		case buf := <-s.windows:
			s.decode(buf, w)
			return nil
		default:
		}
		return s.err
	case <-s.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return ErrTimeout
	}
}

func (s *Stream) decode(buf []byte, w *audio.Window) {
	audio.Decode(s.format, buf, w)
	s.recycle(buf)
}

// Dropped returns the number of windows dropped on overflow.
func (s *Stream) Dropped() uint64 {
	return s.dropped.Load()
}

// Close stops delivering windows and closes the underlying reader.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.closer != nil {
			err = s.closer()
		}
	})
	return err
}
