package panel

import (
	"math"

	"github.com/daviddao/sportvision_viewer/internal/protocol"
	"github.com/lucasb-eyer/go-colorful"
)

// Heatmap defaults.
const (
	DefaultSampleEvery = 10
	DefaultSourceW     = 960
	DefaultSourceH     = 540
)

var (
	heatCore  = mustHex("#ff3366")
	heatEdge  = mustHex("#ffaa33")
	trajColor = mustHex("#00f0ff")
	courtLine = colorful.Color{R: 1, G: 1, B: 1}
)

// HeatPoint is an accumulated sample. Recency is its position in arrival
// order; larger is newer.
type HeatPoint struct {
	X, Y    float64
	Recency int
}

// Heatmap accumulates trajectory samples for one session and redraws all of
// them every pass. Samples are accepted at a throttled cadence, one batch per
// `every` frames, independent of the render tick.
type Heatmap struct {
	points []HeatPoint
	every  uint64

	defaultW, defaultH int
	srcW, srcH         int
}

// NewHeatmap returns an empty heatmap accepting one batch per every frames
// and assuming defaultW x defaultH sources when the server omits dimensions.
func NewHeatmap(every uint64, defaultW, defaultH int) *Heatmap {
	if every == 0 {
		every = DefaultSampleEvery
	}
	if defaultW <= 0 || defaultH <= 0 {
		defaultW, defaultH = DefaultSourceW, DefaultSourceH
	}
	return &Heatmap{every: every, defaultW: defaultW, defaultH: defaultH}
}

// Offer appends sample if frameNumber falls on the sampling cadence. It
// reports whether the batch was accepted.
func (h *Heatmap) Offer(frameNumber uint64, sample []protocol.Point, srcW, srcH int) bool {
	if len(sample) == 0 || frameNumber%h.every != 0 {
		return false
	}
	h.Append(sample, srcW, srcH)
	return true
}

// Append adds sample unconditionally. Servers send a sliding window of
// recent positions, so the longest prefix of sample that repeats the tail of
// the sequence is skipped and only the new points are appended.
// Non-positive dimensions keep the previously known source size.
func (h *Heatmap) Append(sample []protocol.Point, srcW, srcH int) {
	if srcW > 0 && srcH > 0 {
		h.srcW, h.srcH = srcW, srcH
	}
	for _, p := range sample[h.overlap(sample):] {
		h.points = append(h.points, HeatPoint{X: p.X, Y: p.Y, Recency: len(h.points)})
	}
}

// overlap returns the length of the longest prefix of sample equal to the
// tail of the accumulated points.
func (h *Heatmap) overlap(sample []protocol.Point) int {
	for k := min(len(sample), len(h.points)); k > 0; k-- {
		tail := h.points[len(h.points)-k:]
		match := true
		for i, p := range sample[:k] {
			if tail[i].X != p.X || tail[i].Y != p.Y {
				match = false
				break
			}
		}
		if match {
			return k
		}
	}
	return 0
}

// Points returns the accumulated samples, oldest first.
func (h *Heatmap) Points() []HeatPoint {
	out := make([]HeatPoint, len(h.points))
	copy(out, h.points)
	return out
}

func (h *Heatmap) Len() int { return len(h.points) }

// Reset clears the accumulated samples.
func (h *Heatmap) Reset() {
	h.points = nil
	h.srcW, h.srcH = 0, 0
}

// SourceSize is the coordinate space samples are expressed in.
func (h *Heatmap) SourceSize() (int, int) {
	if h.srcW > 0 && h.srcH > 0 {
		return h.srcW, h.srcH
	}
	return h.defaultW, h.defaultH
}

// margin is the inset, in dots, between the surface edge and the court.
func margin(w, h int) float64 {
	if w < 8 || h < 8 {
		return 0
	}
	return 1
}

// Project maps a source-space position onto a w x h dot surface. The court
// keeps a small margin on every side, symmetric, so the source centre lands on
// the surface centre.
func (h *Heatmap) Project(x, y float64, w, hgt int) (float64, float64) {
	sw, sh := h.SourceSize()
	m := margin(w, hgt)
	return m + x*(float64(w)-2*m)/float64(sw), m + y*(float64(hgt)-2*m)/float64(sh)
}

// Alpha is the opacity of the i-th of n points; older points are fainter.
func Alpha(i, n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(i)/float64(n)*0.6 + 0.1
}

// Draw redraws the court, one radially faded blob per sample and the
// trajectory polyline through all samples.
func (h *Heatmap) Draw(s Surface) {
	s.Clear()
	w, hgt := s.Size()
	m := margin(w, hgt)

	drawRect(s, m, m, float64(w)-1-m, float64(hgt)-1-m, Fade(courtLine, 0.1), 0.05)
	drawLine(s, float64(w-1)/2, m, float64(w-1)/2, float64(hgt)-1-m, Fade(courtLine, 0.1), 0.05)

	n := len(h.points)
	radius := math.Max(2, float64(min(w, hgt))/10)
	for i, p := range h.points {
		px, py := h.Project(p.X, p.Y, w, hgt)
		drawBlob(s, px, py, radius, Alpha(i, n))
	}

	for i := 1; i < n; i++ {
		x0, y0 := h.Project(h.points[i-1].X, h.points[i-1].Y, w, hgt)
		x1, y1 := h.Project(h.points[i].X, h.points[i].Y, w, hgt)
		drawLine(s, x0, y0, x1, y1, Fade(trajColor, 0.3), 0.3)
	}
}

// drawBlob plots a disc whose opacity falls from alpha at the centre to zero
// at the rim, shifting from the core to the edge colour.
func drawBlob(s Surface, cx, cy, r, alpha float64) {
	for y := int(math.Floor(cy - r)); y <= int(math.Ceil(cy+r)); y++ {
		for x := int(math.Floor(cx - r)); x <= int(math.Ceil(cx+r)); x++ {
			d := math.Hypot(float64(x)-cx, float64(y)-cy) / r
			if d > 1 {
				continue
			}
			a := alpha * (1 - d)
			if d > 0.5 {
				a *= 0.5
			}
			if a < 0.05 {
				continue
			}
			s.Plot(x, y, Fade(heatCore.BlendRgb(heatEdge, d), a), a)
		}
	}
}
