package audio

import "github.com/oszuidwest/zwfm-levelmeter/internal/types"

// DefaultHoldCycles is the number of cycles a peak is held before it snaps
// back to the current reading.
const DefaultHoldCycles = 16

// ChannelState is the per-channel state carried across cycles.
type ChannelState struct {
	// DC is the latest DC reading in physical units.
	DC float64
	// AC is the latest AC reading in physical units.
	AC float64
	// Peak is the held peak AC magnitude in physical units.
	Peak float64
	// PeakLevel is the display level of the last recorded peak.
	PeakLevel int
}

// PeakHolder tracks peak-hold state for up to MaxChannels channels.
//
// Peaks rise immediately. Every HoldCycles+1 cycles all channels snap down
// to their current reading, so a peak is held for at most HoldCycles cycles.
// It is owned by the meter loop and not safe for concurrent use.
type PeakHolder struct {
	mapper     LevelMapper
	holdCycles int
	age        int
	channels   [types.MaxChannels]ChannelState
}

// NewPeakHolder creates a peak holder mapping peaks with mapper.
func NewPeakHolder(mapper LevelMapper, holdCycles int) *PeakHolder {
	if holdCycles <= 0 {
		holdCycles = DefaultHoldCycles
	}
	return &PeakHolder{
		mapper:     mapper,
		holdCycles: holdCycles,
	}
}

// Update feeds one cycle of readings, one per channel, and advances the
// shared hold counter once.
func (p *PeakHolder) Update(readings []Reading) {
	p.age++
	decay := p.age > p.holdCycles

	for ch, r := range readings[:min(len(readings), types.MaxChannels)] {
		st := &p.channels[ch]
		st.DC = r.DC
		st.AC = r.AC

		// A snap-down keeps the marker where it was; the marker level
		// only moves when a new peak is recorded.
		if decay {
			st.Peak = r.AC
		}
		if r.AC > st.Peak {
			st.Peak = r.AC
			st.PeakLevel = p.mapper.Level(r.AC)
		}
	}

	if decay {
		p.age = 0
	}
}

// Channel returns the state of channel ch.
func (p *PeakHolder) Channel(ch int) ChannelState {
	return p.channels[ch]
}

// Age returns the number of cycles since the last snap-down.
func (p *PeakHolder) Age() int {
	return p.age
}

// Reset clears held peaks and the hold counter.
func (p *PeakHolder) Reset() {
	p.age = 0
	p.channels = [types.MaxChannels]ChannelState{}
}
