// Package panel implements the dashboard's visual subsystems: joint gauges,
// the motion heatmap, the skeleton overlay, the action timeline, and the
// surfaces they draw on.
//
// Panels never look anything up globally. Each one is handed a Surface to draw
// on, and keeps only its own state between ticks.
package panel

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

// Surface is a dot-addressable drawing target. Weight orders overlapping
// plots: a dot's colour is replaced only by a plot of equal or greater weight.
type Surface interface {
	Size() (w, h int)
	Plot(x, y int, c colorful.Color, weight float64)
	Clear()
}

// Background is the dark fill panels fade towards.
var Background = mustHex("#0c0c24")

// brailleBits maps a dot position inside a 2x4 cell to its braille bit.
var brailleBits = [4][2]uint8{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Canvas is a braille Surface: every terminal cell holds 2x4 dots, so a canvas
// of cols x rows cells is 2*cols x 4*rows dots. Each cell carries one colour,
// taken from its heaviest plot.
type Canvas struct {
	cols, rows int
	mask       []uint8
	color      []colorful.Color
	weight     []float64
}

// NewCanvas returns a blank canvas of the given cell size.
func NewCanvas(cols, rows int) *Canvas {
	cols = max(cols, 1)
	rows = max(rows, 1)
	n := cols * rows
	return &Canvas{
		cols:   cols,
		rows:   rows,
		mask:   make([]uint8, n),
		color:  make([]colorful.Color, n),
		weight: make([]float64, n),
	}
}

// Size returns the canvas size in dots.
func (c *Canvas) Size() (int, int) {
	return c.cols * 2, c.rows * 4
}

// Cells returns the canvas size in terminal cells.
func (c *Canvas) Cells() (int, int) {
	return c.cols, c.rows
}

// Clear blanks every dot.
func (c *Canvas) Clear() {
	for i := range c.mask {
		c.mask[i] = 0
		c.weight[i] = 0
	}
}

// Plot lights the dot at (x, y). Out-of-range dots are ignored.
func (c *Canvas) Plot(x, y int, col colorful.Color, weight float64) {
	if x < 0 || y < 0 || x >= c.cols*2 || y >= c.rows*4 {
		return
	}
	i := (y/4)*c.cols + x/2
	c.mask[i] |= brailleBits[y%4][x%2]
	if weight >= c.weight[i] {
		c.weight[i] = weight
		c.color[i] = col
	}
}

// Lit reports whether the dot at (x, y) is set.
func (c *Canvas) Lit(x, y int) bool {
	if x < 0 || y < 0 || x >= c.cols*2 || y >= c.rows*4 {
		return false
	}
	return c.mask[(y/4)*c.cols+x/2]&brailleBits[y%4][x%2] != 0
}

// Cell returns the glyph and colour of a cell; ok is false for an empty cell.
func (c *Canvas) Cell(col, row int) (r rune, clr colorful.Color, ok bool) {
	if col < 0 || row < 0 || col >= c.cols || row >= c.rows {
		return ' ', colorful.Color{}, false
	}
	i := row*c.cols + col
	if c.mask[i] == 0 {
		return ' ', colorful.Color{}, false
	}
	return rune(0x2800 + int(c.mask[i])), c.color[i], true
}

// String renders the canvas, one line per cell row.
func (c *Canvas) String() string {
	styles := styleCache{}
	var b strings.Builder
	for row := 0; row < c.rows; row++ {
		if row > 0 {
			b.WriteRune('\n')
		}
		for col := 0; col < c.cols; col++ {
			r, clr, ok := c.Cell(col, row)
			if !ok {
				b.WriteRune(' ')
				continue
			}
			b.WriteString(styles.fg(clr).Render(string(r)))
		}
	}
	return b.String()
}

// styleCache avoids building a lipgloss style per cell.
type styleCache map[string]lipgloss.Style

func (s styleCache) fg(c colorful.Color) lipgloss.Style {
	key := c.Hex()
	st, ok := s[key]
	if !ok {
		st = lipgloss.NewStyle().Foreground(lipgloss.Color(key))
		s[key] = st
	}
	return st
}

func (s styleCache) fgbg(fg, bg colorful.Color) lipgloss.Style {
	key := fg.Hex() + bg.Hex()
	st, ok := s[key]
	if !ok {
		st = lipgloss.NewStyle().
			Foreground(lipgloss.Color(fg.Hex())).
			Background(lipgloss.Color(bg.Hex()))
		s[key] = st
	}
	return st
}

// --- drawing primitives ---

// Fade blends c over the panel background with the given opacity.
func Fade(c colorful.Color, alpha float64) colorful.Color {
	return Background.BlendRgb(c, clamp01(alpha)).Clamped()
}

// drawLine plots a straight line with Bresenham's algorithm.
func drawLine(s Surface, x0, y0, x1, y1 float64, c colorful.Color, weight float64) {
	ax, ay := int(math.Round(x0)), int(math.Round(y0))
	bx, by := int(math.Round(x1)), int(math.Round(y1))
	dx := abs(bx - ax)
	dy := -abs(by - ay)
	sx, sy := 1, 1
	if ax > bx {
		sx = -1
	}
	if ay > by {
		sy = -1
	}
	e := dx + dy
	for {
		s.Plot(ax, ay, c, weight)
		if ax == bx && ay == by {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			ax += sx
		}
		if e2 <= dx {
			e += dx
			ay += sy
		}
	}
}

// drawRect plots the outline of the rectangle spanned by two corners.
func drawRect(s Surface, x0, y0, x1, y1 float64, c colorful.Color, weight float64) {
	drawLine(s, x0, y0, x1, y0, c, weight)
	drawLine(s, x1, y0, x1, y1, c, weight)
	drawLine(s, x1, y1, x0, y1, c, weight)
	drawLine(s, x0, y1, x0, y0, c, weight)
}

// drawArc plots the arc of radius r around (cx, cy) from angle a0 to a1,
// in radians, clockwise on screen (y grows downwards).
func drawArc(s Surface, cx, cy, r, a0, a1 float64, c colorful.Color, weight float64) {
	if a1 < a0 || r <= 0 {
		return
	}
	// One step per dot of arc length keeps the arc continuous.
	steps := int(math.Ceil((a1-a0)*r)) + 1
	for i := 0; i <= steps; i++ {
		a := a0 + (a1-a0)*float64(i)/float64(steps)
		s.Plot(int(math.Round(cx+r*math.Cos(a))), int(math.Round(cy+r*math.Sin(a))), c, weight)
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// mustHex parses a #rrggbb colour, falling back to grey for bad input.
func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{R: 0.5, G: 0.5, B: 0.5}
	}
	return c
}

// ParseColor is mustHex for server-supplied colours.
func ParseColor(s string) colorful.Color {
	return mustHex(s)
}
