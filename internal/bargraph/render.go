// Package bargraph renders display levels into rows of sub-cell glyph codes.
package bargraph

import (
	"math/bits"
)

// MaxSubCells is the largest number of sub-cells per cell; the tick flag
// must still fit in one byte.
const MaxSubCells = 7

// Glyph is the code of one character cell: bit k is set when sub-cell k is
// lit, and bit SubCells is the tick flag.
type Glyph byte

// Renderer turns a level and a peak level into one row of glyphs.
type Renderer struct {
	// Cells is the number of character cells per row.
	Cells int
	// SubCells is the number of sub-cells per character cell.
	SubCells int
	// ScaleMax is the largest input level. Levels are rescaled to
	// Cells·SubCells sub-cells when it differs.
	ScaleMax int
	// TickStride marks every TickStride-th cell with the tick flag; 0 disables ticks.
	TickStride int
}

// SubCellCount returns the total number of sub-cells in a row.
func (r Renderer) SubCellCount() int {
	return r.Cells * r.SubCells
}

// Render recomputes the whole row for level and peak, appending Cells glyph
// codes to row[:0].
//
// Sub-cell s is lit when s <= level. The peak sub-cell is lit on its own only
// when it lies above the level. Sub-cell 0 is always lit, so cell 0 never
// shows a peak marker alone.
func (r Renderer) Render(level, peak int, row []byte) []byte {
	row = row[:0]
	total := r.SubCellCount()
	if total <= 0 {
		return row
	}

	lvl := r.toSubCell(level)
	pk := r.toSubCell(peak)
	tick := Glyph(1) << r.SubCells

	for i := range r.Cells {
		var mask Glyph
		for k := range r.SubCells {
			if i*r.SubCells+k <= lvl {
				mask |= 1 << k
			}
		}

		if pk/r.SubCells == i && pk > lvl {
			mask |= 1 << (pk % r.SubCells)
		}

		if r.TickStride > 0 && i%r.TickStride == 0 {
			mask |= tick
		}

		row = append(row, byte(mask))
	}

	return row
}

// toSubCell rescales a level on [0, ScaleMax] to a sub-cell index on
// [0, Cells·SubCells−1].
func (r Renderer) toSubCell(level int) int {
	total := r.SubCellCount()
	if r.ScaleMax > 0 && r.ScaleMax != total {
		level = level * total / r.ScaleMax
	}
	return min(max(level, 0), total-1)
}

// partialBlocks are left-aligned block elements from 1/8 to 7/8 wide.
var partialBlocks = []rune("▏▎▍▌▋▊▉")

// Rune returns the console rune for a glyph rendered with subCells sub-cells
// per cell.
func (g Glyph) Rune(subCells int) rune {
	full := Glyph(1)<<subCells - 1
	lit := g & full

	switch {
	case lit == 0:
		if g&(1<<subCells) != 0 {
			return '·'
		}
		return ' '
	case lit == full:
		return '█'
	case subCells == 2 && lit == 1:
		return '▌'
	case subCells == 2 && lit == 2:
		return '▐'
	default:
		n := bits.OnesCount8(uint8(lit))
		return partialBlocks[min(n*8/subCells, len(partialBlocks))-1]
	}
}

// Runes converts a row of glyph codes to a string for a console.
func Runes(row []byte, subCells int) string {
	out := make([]rune, len(row))
	for i, b := range row {
		out[i] = Glyph(b).Rune(subCells)
	}
	return string(out)
}
