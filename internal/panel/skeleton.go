package panel

import (
	"sort"

	"github.com/daviddao/sportvision_viewer/internal/protocol"
	"github.com/lucasb-eyer/go-colorful"
)

// Skeleton defaults.
const (
	DefaultVisibility   = 0.5
	DefaultTrailLength  = 15
	DefaultTrackedJoint = "right_wrist"
)

// Part is a body-part group of the skeleton graph.
type Part string

const (
	PartTorso    Part = "torso"
	PartLeftArm  Part = "left_arm"
	PartRightArm Part = "right_arm"
	PartLeftLeg  Part = "left_leg"
	PartRightLeg Part = "right_leg"
)

// Color returns the limb colour of the part.
func (p Part) Color() colorful.Color {
	switch p {
	case PartTorso:
		return mustHex("#00d4ff")
	case PartLeftArm:
		return mustHex("#00ffcc")
	case PartRightArm:
		return mustHex("#33ff88")
	case PartLeftLeg:
		return mustHex("#cc66ff")
	case PartRightLeg:
		return mustHex("#ffaa33")
	}
	return mustHex("#ffffff")
}

// Connection joins two named joints.
type Connection struct {
	From, To string
	Part     Part
}

// Connections is the static skeleton graph.
var Connections = []Connection{
	{"left_shoulder", "right_shoulder", PartTorso},
	{"left_shoulder", "left_hip", PartTorso},
	{"right_shoulder", "right_hip", PartTorso},
	{"left_hip", "right_hip", PartTorso},
	{"left_shoulder", "left_elbow", PartLeftArm},
	{"left_elbow", "left_wrist", PartLeftArm},
	{"right_shoulder", "right_elbow", PartRightArm},
	{"right_elbow", "right_wrist", PartRightArm},
	{"left_hip", "left_knee", PartLeftLeg},
	{"left_knee", "left_ankle", PartLeftLeg},
	{"right_hip", "right_knee", PartRightLeg},
	{"right_knee", "right_ankle", PartRightLeg},
}

var (
	jointColor = mustHex("#00f0ff")
	trailColor = mustHex("#ff3366")
)

// Segment is a connection whose endpoints are both visible.
type Segment struct {
	From, To protocol.Keypoint
	Part     Part
}

// Skeleton draws the latest pose and a fading trail of one tracked joint.
type Skeleton struct {
	threshold float64
	tracked   string

	joints map[string]protocol.Keypoint
	trail  *Ring[protocol.Point]
}

// NewSkeleton returns an empty overlay tracking the named joint over the last
// trailLen visible positions.
func NewSkeleton(tracked string, threshold float64, trailLen int) *Skeleton {
	if tracked == "" {
		tracked = DefaultTrackedJoint
	}
	if trailLen <= 0 {
		trailLen = DefaultTrailLength
	}
	return &Skeleton{
		threshold: threshold,
		tracked:   tracked,
		joints:    map[string]protocol.Keypoint{},
		trail:     NewRing[protocol.Point](trailLen),
	}
}

// SetThreshold changes the visibility gate.
func (s *Skeleton) SetThreshold(t float64) {
	s.threshold = t
}

// Update replaces the pose with keypoints and extends the trail when the
// tracked joint is visible.
func (s *Skeleton) Update(keypoints []protocol.Keypoint) {
	if len(keypoints) == 0 {
		return
	}
	joints := make(map[string]protocol.Keypoint, len(keypoints))
	for _, kp := range keypoints {
		joints[kp.Name] = kp
	}
	s.joints = joints

	if kp, ok := joints[s.tracked]; ok && s.visible(kp) {
		s.trail.Push(protocol.Point{X: kp.X, Y: kp.Y})
	}
}

func (s *Skeleton) visible(kp protocol.Keypoint) bool {
	return kp.Visibility > s.threshold
}

// Segments returns the connections with both endpoints present and visible.
func (s *Skeleton) Segments() []Segment {
	var out []Segment
	for _, c := range Connections {
		from, ok1 := s.joints[c.From]
		to, ok2 := s.joints[c.To]
		if !ok1 || !ok2 || !s.visible(from) || !s.visible(to) {
			continue
		}
		out = append(out, Segment{From: from, To: to, Part: c.Part})
	}
	return out
}

// Joints returns the visible keypoints sorted by name.
func (s *Skeleton) Joints() []protocol.Keypoint {
	var out []protocol.Keypoint
	for _, kp := range s.joints {
		if s.visible(kp) {
			out = append(out, kp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Trail returns the tracked joint's recent positions, oldest first.
func (s *Skeleton) Trail() []protocol.Point {
	return s.trail.Items()
}

// Reset clears the pose and the trail. The connection graph is static.
func (s *Skeleton) Reset() {
	s.joints = map[string]protocol.Keypoint{}
	s.trail.Clear()
}

// Draw renders limbs, joint markers and the trail, scaling source
// coordinates by (sx, sy) into surface dots.
func (s *Skeleton) Draw(surf Surface, sx, sy float64) {
	surf.Clear()
	s.DrawOver(surf, sx, sy)
}

// DrawOver is Draw without clearing the surface first.
func (s *Skeleton) DrawOver(surf Surface, sx, sy float64) {
	trail := s.trail.Items()
	for i := 1; i < len(trail); i++ {
		a := float64(i) / float64(len(trail))
		drawLine(surf, trail[i-1].X*sx, trail[i-1].Y*sy, trail[i].X*sx, trail[i].Y*sy,
			Fade(trailColor, a*0.6+0.2), 0.2+a*0.3)
	}

	for _, seg := range s.Segments() {
		drawLine(surf, seg.From.X*sx, seg.From.Y*sy, seg.To.X*sx, seg.To.Y*sy, seg.Part.Color(), 0.8)
	}

	for _, kp := range s.Joints() {
		surf.Plot(int(kp.X*sx+0.5), int(kp.Y*sy+0.5), jointColor, 1)
	}
}
