// Package audio implements the measurement core of the level meter: sample
// decoding, DC/AC separation, dB level mapping, peak hold and silence
// detection.
package audio

import (
	"encoding/binary"

	"github.com/oszuidwest/zwfm-levelmeter/internal/types"
)

const (
	// s16Range is the number of distinct 16-bit sample values.
	s16Range = 65536.0
	// s8Range is the number of distinct 8-bit sample values.
	s8Range = 256.0
	// U16FullScale is the largest unsigned 16-bit ADC count.
	U16FullScale = 65535.0
)

// FullScale returns the span of decoded sample units for a format.
// Signed formats decode to [-0.5, 0.5), so their span is 1.
func FullScale(format types.SampleFormat) float64 {
	if format == types.FormatU16LE {
		return U16FullScale
	}
	return 1
}

// Decode de-interleaves raw frames into w and returns the number of frames
// decoded. A short buffer decodes the complete frames it holds; a trailing
// partial frame is ignored.
func Decode(format types.SampleFormat, raw []byte, w *Window) int {
	bps := format.BytesPerSample()
	frameBytes := w.FrameBytes(format)
	frames := min(len(raw)/frameBytes, w.Size)

	for f := range frames {
		base := f * frameBytes
		for ch := range w.Channels {
			off := base + ch*bps
			w.Samples[ch][f] = decodeSample(format, raw[off:off+bps])
		}
	}

	w.Frames = frames
	return frames
}

func decodeSample(format types.SampleFormat, b []byte) float64 {
	switch format {
	case types.FormatS8:
		// int8 conversion wraps values >= 128 to negative.
		return float64(int8(b[0])) / s8Range
	case types.FormatU16LE:
		return float64(binary.LittleEndian.Uint16(b))
	default:
		// int16 conversion wraps values >= 32768 to negative.
		return float64(int16(binary.LittleEndian.Uint16(b))) / s16Range
	}
}
