package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/oszuidwest/zwfm-levelmeter/internal/bargraph"
	"github.com/oszuidwest/zwfm-levelmeter/internal/types"
)

// Colour zones as fractions of the row width.
const (
	warnZone = 0.7
	clipZone = 0.9
)

var channelLabels = [types.MaxChannels]string{"L", "R"}

// ConsoleConfig configures a Console sink.
type ConsoleConfig struct {
	Rows     int
	SubCells int
	Color    bool
}

// Console draws bar graph rows on a terminal, redrawing in place once all
// rows of a cycle have been written.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	rows     int
	subCells int
	lines    [types.MaxChannels]string
	drawn    bool

	okStyle, warnStyle, clipStyle, labelStyle lipgloss.Style
	color                                     bool
}

// NewConsole creates a console sink writing to w.
func NewConsole(w io.Writer, cfg ConsoleConfig) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:          w,
		rows:       min(max(cfg.Rows, 1), types.MaxChannels),
		subCells:   cfg.SubCells,
		color:      cfg.Color,
		okStyle:    r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#008700", Dark: "#5FD75F"}),
		warnStyle:  r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD75F"}),
		clipStyle:  r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#A00000", Dark: "#FF5F5F"}),
		labelStyle: r.NewStyle().Bold(true),
	}
}

// WriteRow implements Sink. The screen is updated when the last row arrives.
func (c *Console) WriteRow(row int, glyphs []byte) error {
	if row < 0 || row >= c.rows {
		return fmt.Errorf("row %d out of range [0, %d)", row, c.rows)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines[row] = c.format(row, glyphs)
	if row != c.rows-1 {
		return nil
	}
	return c.flush()
}

func (c *Console) format(row int, glyphs []byte) string {
	bar := bargraph.Runes(glyphs, c.subCells)
	label := channelLabels[row]
	if !c.color {
		return label + " " + bar
	}

	cells := []rune(bar)
	warn := int(float64(len(cells)) * warnZone)
	clip := int(float64(len(cells)) * clipZone)

	var sb strings.Builder
	sb.WriteString(c.labelStyle.Render(label))
	sb.WriteByte(' ')
	sb.WriteString(c.okStyle.Render(string(cells[:warn])))
	sb.WriteString(c.warnStyle.Render(string(cells[warn:clip])))
	sb.WriteString(c.clipStyle.Render(string(cells[clip:])))
	return sb.String()
}

// flush redraws all rows, moving the cursor back over the previous frame.
func (c *Console) flush() error {
	var sb strings.Builder
	if c.drawn {
		fmt.Fprintf(&sb, "\x1b[%dA", c.rows)
	}
	for _, line := range c.lines[:c.rows] {
		sb.WriteString("\r")
		sb.WriteString(line)
		sb.WriteString("\x1b[K\n")
	}
	c.drawn = true

	_, err := io.WriteString(c.w, sb.String())
	return err
}

// Splash shows text on the first row and clears the others.
func (c *Console) Splash(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines[0] = text
	for i := 1; i < c.rows; i++ {
		c.lines[i] = ""
	}
	return c.flush()
}

// SetBrightness implements Sink. The console has no indicator.
func (c *Console) SetBrightness(float64) error {
	return nil
}

// Close implements Sink.
func (c *Console) Close() error {
	return nil
}
