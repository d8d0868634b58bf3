package panel

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Arc geometry: the dial starts at 135° and sweeps 270° clockwise.
const (
	ArcStart = 0.75 * math.Pi
	ArcSpan  = 1.5 * math.Pi
)

// DefaultAlpha is the per-tick smoothing factor.
const DefaultAlpha = 0.15

// TrackedJoints are the joints shown as gauges, in display order.
var TrackedJoints = []string{"right_elbow", "left_elbow", "right_knee", "left_knee"}

// Band is a colour band for a gauge reading.
type Band int

const (
	BandWarning Band = iota
	BandCaution
	BandNominal
)

func (b Band) String() string {
	switch b {
	case BandWarning:
		return "warning"
	case BandCaution:
		return "caution"
	case BandNominal:
		return "nominal"
	}
	return "?"
}

// Color returns the display colour of the band.
func (b Band) Color() colorful.Color {
	switch b {
	case BandWarning:
		return mustHex("#ff3366")
	case BandCaution:
		return mustHex("#ffaa33")
	default:
		return mustHex("#33ff88")
	}
}

// Bands holds the thresholds between colour bands, in degrees.
type Bands struct {
	Warning float64 // below this is BandWarning
	Caution float64 // below this (and not warning) is BandCaution
}

// DefaultBands are the thresholds used when none are configured.
var DefaultBands = Bands{Warning: 60, Caution: 120}

// Classify returns the band of v.
func (b Bands) Classify(v float64) Band {
	switch {
	case v < b.Warning:
		return BandWarning
	case v < b.Caution:
		return BandCaution
	default:
		return BandNominal
	}
}

// Gauge animates one joint-angle dial. The displayed value only moves through
// Step, an exponential moving average towards the latest target.
type Gauge struct {
	Joint string

	current float64
	target  float64
	alpha   float64
	max     float64
}

// NewGauge returns a gauge at rest at 0. fullScale is the value that fills
// the arc, 180° for joint angles.
func NewGauge(joint string, alpha, fullScale float64) *Gauge {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	if fullScale <= 0 {
		fullScale = 180
	}
	return &Gauge{Joint: joint, alpha: alpha, max: fullScale}
}

// SetTarget records a new reading. The target is never smoothed.
func (g *Gauge) SetTarget(v float64) {
	g.target = v
}

// SetAlpha changes the smoothing factor; values outside (0, 1] are ignored.
func (g *Gauge) SetAlpha(a float64) {
	if a > 0 && a <= 1 {
		g.alpha = a
	}
}

// Step advances the animation by one render tick.
func (g *Gauge) Step() {
	g.current += (g.target - g.current) * g.alpha
}

// Reset snaps the gauge to 0 without animating.
func (g *Gauge) Reset() {
	g.current = 0
	g.target = 0
}

func (g *Gauge) Current() float64 { return g.current }
func (g *Gauge) Target() float64  { return g.target }
func (g *Gauge) Alpha() float64   { return g.alpha }

// Fraction is the filled share of the arc, in [0, 1].
func (g *Gauge) Fraction() float64 {
	return clamp01(g.current / g.max)
}

// EndAngle is the angle, in radians, where the value arc stops.
func (g *Gauge) EndAngle() float64 {
	return ArcStart + g.Fraction()*ArcSpan
}

// Label is the rounded current value.
func (g *Gauge) Label() string {
	return fmt.Sprintf("%d°", int(math.Round(g.current)))
}

// Draw renders the dial: a faint full-span track, then the value arc coloured
// by band.
func (g *Gauge) Draw(s Surface, bands Bands) {
	s.Clear()
	w, h := s.Size()
	cx := float64(w-1) / 2
	cy := float64(h-1) / 2
	r := math.Min(cx, cy) - 1
	if r < 1 {
		return
	}
	drawArc(s, cx, cy, r, ArcStart, ArcStart+ArcSpan, Fade(colorful.Color{R: 1, G: 1, B: 1}, 0.15), 0.1)
	if g.Fraction() > 0 {
		drawArc(s, cx, cy, r, ArcStart, g.EndAngle(), bands.Classify(g.current).Color(), 1)
	}
}
