package audio

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/oszuidwest/zwfm-levelmeter/internal/types"
)

// pairPeakDivisor converts the largest adjacent-pair sum into an RMS-like value.
const pairPeakDivisor = 2 * math.Sqrt2

// Reading is the result of measuring one channel of one window.
type Reading struct {
	// DCMean is the mean sample value in decoded sample units.
	DCMean float64
	// ACMagnitude is the AC estimate in decoded sample units.
	ACMagnitude float64
	// DC is DCMean in physical units.
	DC float64
	// AC is ACMagnitude in physical units.
	AC float64
	// ACFraction is ACMagnitude relative to the format's full scale, on [0, 1].
	ACFraction float64
}

// AccumulatorConfig configures an Accumulator.
type AccumulatorConfig struct {
	Mode   types.Mode
	Format types.SampleFormat
	Units  types.Units
	// SupplyMV is the ADC reference voltage in millivolts.
	SupplyMV float64
	// ADCBits is the ADC resolution used for millivolt conversion of u16le counts.
	ADCBits int
	// RoundCounts rounds DC and AC to whole sample units before conversion.
	RoundCounts bool
}

// Accumulator turns sample windows into DC and AC readings.
// It holds no per-window state.
type Accumulator struct {
	mode           types.Mode
	fullScale      float64
	unitsPerSample float64
	roundCounts    bool
}

// NewAccumulator creates an accumulator for the given configuration.
func NewAccumulator(cfg AccumulatorConfig) *Accumulator {
	return &Accumulator{
		mode:           cfg.Mode,
		fullScale:      FullScale(cfg.Format),
		unitsPerSample: UnitsPerSample(cfg),
		roundCounts:    cfg.RoundCounts,
	}
}

// UnitsPerSample returns the factor converting decoded sample units into
// the configured physical units.
func UnitsPerSample(cfg AccumulatorConfig) float64 {
	fullScale := FullScale(cfg.Format)
	if cfg.Units != types.UnitsMillivolts {
		return 100 / fullScale
	}
	if cfg.Format == types.FormatU16LE && cfg.ADCBits > 0 {
		return cfg.SupplyMV / float64(uint64(1)<<cfg.ADCBits-1)
	}
	return cfg.SupplyMV / fullScale
}

// Process measures every channel of w. Results are appended to out[:0].
func (a *Accumulator) Process(w *Window, out []Reading) []Reading {
	out = out[:0]
	for ch := range w.Channels {
		out = append(out, a.measure(w.Channel(ch)))
	}
	return out
}

func (a *Accumulator) measure(samples []float64) Reading {
	dc := DCMean(samples)
	if a.roundCounts {
		dc = math.Trunc(dc + 0.5)
	}

	var ac float64
	switch a.mode {
	case types.ModeVoltage:
		ac = PairPeak(samples, dc) / pairPeakDivisor
	default:
		ac = MeanAbsDeviation(samples, dc)
	}

	if a.roundCounts {
		ac = math.Trunc(ac + 0.5)
	}

	return Reading{
		DCMean:      dc,
		ACMagnitude: ac,
		DC:          dc * a.unitsPerSample,
		AC:          ac * a.unitsPerSample,
		ACFraction:  min(max(ac/a.fullScale, 0), 1),
	}
}

// DCMean returns the arithmetic mean of samples, or 0 for an empty slice.
func DCMean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return stat.Mean(samples, nil)
}

// MeanAbsDeviation returns Σ|x − dc| / N, or 0 for an empty slice.
func MeanAbsDeviation(samples []float64, dc float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, x := range samples {
		sum += math.Abs(x - dc)
	}
	return sum / float64(len(samples))
}

// PairPeak returns the largest |x[i] + x[i+1] − 2·dc| over adjacent pairs.
// Summing neighbours rejects single-sample spikes that a raw peak would catch.
func PairPeak(samples []float64, dc float64) float64 {
	var peak float64
	for i := 0; i+1 < len(samples); i++ {
		if v := math.Abs(samples[i] + samples[i+1] - 2*dc); v > peak {
			peak = v
		}
	}
	return peak
}
