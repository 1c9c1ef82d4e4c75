package audio

import "math"

// LevelMapper converts AC magnitudes to integer display levels on a
// logarithmic scale.
type LevelMapper struct {
	// Reference is the magnitude shown as a full bar (0 dB).
	Reference float64
	// RangeDB is the dB span between an empty and a full bar.
	RangeDB float64
	// ScaleMax is the largest display level.
	ScaleMax int
}

// Level maps magnitude to round((20·log10(m/ref) + range) / range · scaleMax),
// clamped to [0, ScaleMax]. Non-positive and NaN magnitudes map to 0.
func (m LevelMapper) Level(magnitude float64) int {
	if !(magnitude > 0) {
		return 0
	}

	db := 20 * math.Log10(magnitude/m.Reference)
	v := math.Round((db + m.RangeDB) / m.RangeDB * float64(m.ScaleMax))

	// NaN only appears for a zero RangeDB; treat that as an empty bar.
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= float64(m.ScaleMax):
		return m.ScaleMax
	default:
		return int(v)
	}
}
