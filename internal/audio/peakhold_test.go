package audio

import "testing"

func readings(ac ...float64) []Reading {
	out := make([]Reading, len(ac))
	for i, v := range ac {
		out[i] = Reading{AC: v}
	}
	return out
}

func TestPeakHolderHoldThenSnap(t *testing.T) {
	p := NewPeakHolder(LevelMapper{Reference: 10, RangeDB: 40, ScaleMax: 32}, 16)

	seq := []float64{5, 9}
	for len(seq) < 20 {
		seq = append(seq, 3)
	}

	for i, ac := range seq {
		cycle := i + 1
		p.Update(readings(ac))
		peak := p.Channel(0).Peak

		switch {
		case cycle == 1 && peak != 5:
			t.Errorf("cycle %d: peak = %v, want 5", cycle, peak)
		case cycle >= 2 && cycle <= 16 && peak != 9:
			t.Errorf("cycle %d: peak = %v, want 9", cycle, peak)
		case cycle >= 17 && peak != 3:
			t.Errorf("cycle %d: peak = %v, want 3", cycle, peak)
		}
	}
}

func TestPeakHolderRiseIsImmediate(t *testing.T) {
	p := NewPeakHolder(LevelMapper{Reference: 10, RangeDB: 40, ScaleMax: 32}, 4)

	p.Update(readings(1, 1))
	p.Update(readings(8, 2))

	if got := p.Channel(0).Peak; got != 8 {
		t.Errorf("channel 0 peak = %v, want 8", got)
	}
	if got := p.Channel(1).Peak; got != 2 {
		t.Errorf("channel 1 peak = %v, want 2", got)
	}
	if got, want := p.Channel(0).PeakLevel, p.mapper.Level(8); got != want {
		t.Errorf("PeakLevel = %d, want %d", got, want)
	}
}

func TestPeakHolderNeverBelowCurrent(t *testing.T) {
	p := NewPeakHolder(LevelMapper{Reference: 10, RangeDB: 40, ScaleMax: 32}, 3)
	seq := []float64{4, 1, 7, 2, 2, 9, 0, 0, 0, 0, 5, 6, 1}

	for _, ac := range seq {
		p.Update(readings(ac, ac/2))
		for ch := range 2 {
			st := p.Channel(ch)
			if st.Peak < st.AC {
				t.Fatalf("channel %d: peak %v below current %v", ch, st.Peak, st.AC)
			}
		}
	}
}

func TestPeakHolderSharedCounter(t *testing.T) {
	p := NewPeakHolder(LevelMapper{Reference: 10, RangeDB: 40, ScaleMax: 32}, 2)

	p.Update(readings(1, 1))
	p.Update(readings(1, 1))
	if p.Age() != 2 {
		t.Fatalf("Age() = %d, want 2", p.Age())
	}
	p.Update(readings(1, 1))
	if p.Age() != 0 {
		t.Errorf("Age() after snap = %d, want 0", p.Age())
	}
}

func TestPeakHolderReset(t *testing.T) {
	p := NewPeakHolder(LevelMapper{Reference: 10, RangeDB: 40, ScaleMax: 32}, 16)
	p.Update(readings(9))
	p.Reset()

	if st := p.Channel(0); st.Peak != 0 || st.PeakLevel != 0 || p.Age() != 0 {
		t.Errorf("after Reset: %+v age %d", st, p.Age())
	}
}

func TestPeakHolderSnapKeepsMarkerLevel(t *testing.T) {
	m := LevelMapper{Reference: 10, RangeDB: 40, ScaleMax: 32}
	p := NewPeakHolder(m, 2)

	for _, ac := range []float64{9, 3, 3} {
		p.Update(readings(ac))
	}

	st := p.Channel(0)
	if st.Peak != 3 {
		t.Errorf("Peak after snap = %v, want 3", st.Peak)
	}
	if want := m.Level(9); st.PeakLevel != want {
		t.Errorf("PeakLevel after snap = %d, want %d (level of 9)", st.PeakLevel, want)
	}

	// The next reading above the snapped peak moves the marker.
	p.Update(readings(4))
	if want := m.Level(4); p.Channel(0).PeakLevel != want {
		t.Errorf("PeakLevel after new peak = %d, want %d", p.Channel(0).PeakLevel, want)
	}
}
