package audio

import "github.com/oszuidwest/zwfm-levelmeter/internal/types"

// Device represents an available audio input device.
type Device struct {
	// ID is the device identifier.
	ID string `json:"id"`
	// Name is the device display name.
	Name string `json:"name"`
}

// Window holds one measurement window of decoded samples per channel.
// Buffers are allocated once and reused for every cycle.
type Window struct {
	// Samples holds the decoded samples; only the first Frames entries of
	// the first Channels slices are valid.
	Samples [types.MaxChannels][]float64
	// Channels is the number of channels in use.
	Channels int
	// Size is the requested number of frames per window.
	Size int
	// Frames is the number of frames actually decoded into Samples.
	Frames int
}

// NewWindow allocates a window for the given channel count and size.
// Channel counts outside [1, MaxChannels] are clamped.
func NewWindow(channels, size int) *Window {
	channels = min(max(channels, 1), types.MaxChannels)
	w := &Window{Channels: channels, Size: size}
	for ch := range channels {
		w.Samples[ch] = make([]float64, size)
	}
	return w
}

// Channel returns the valid samples of channel ch.
func (w *Window) Channel(ch int) []float64 {
	return w.Samples[ch][:w.Frames]
}

// FrameBytes returns the encoded size of one interleaved frame.
func (w *Window) FrameBytes(format types.SampleFormat) int {
	return format.BytesPerSample() * w.Channels
}
