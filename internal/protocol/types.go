// Package protocol encodes and decodes the JSON text frames exchanged with the
// analysis server.
//
// Inbound messages form a closed set (Started, Frame, Complete, Stopped,
// ServerError). Consumers dispatch over them with a Handler, which must
// implement one method per variant, so adding a message type breaks every
// handler at compile time instead of falling through a switch.
package protocol

// Wire type tags.
const (
	TypeStart    = "start"
	TypeStop     = "stop"
	TypeStarted  = "started"
	TypeFrame    = "frame"
	TypeComplete = "complete"
	TypeStopped  = "stopped"
	TypeError    = "error"
)

// Point is a 2D position in source video pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Keypoint is one named pose landmark.
type Keypoint struct {
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z,omitempty"`
	Visibility float64 `json:"visibility"`
}

// Biomechanics holds the derived per-frame body metrics.
type Biomechanics struct {
	WristSpeed    float64 `json:"wrist_speed"`
	BodyLean      float64 `json:"body_lean"`
	KneeBend      float64 `json:"knee_bend"`
	SymmetryScore float64 `json:"symmetry_score"`
}

// Pose is the pose-estimation result for one frame.
type Pose struct {
	Keypoints    []Keypoint         `json:"keypoints,omitempty"`
	JointAngles  map[string]float64 `json:"joint_angles,omitempty"`
	Biomechanics *Biomechanics      `json:"biomechanics,omitempty"`
	CenterOfMass *Point             `json:"center_of_mass,omitempty"`
	Confidence   float64            `json:"confidence,omitempty"`
}

// ActionInfo describes how an action is displayed.
type ActionInfo struct {
	Name  string `json:"name,omitempty"`
	Text  string `json:"label,omitempty"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// Label returns the display label. Servers send it as "name"; "label" is
// accepted as well.
func (i ActionInfo) Label() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Text
}

// ActionEvent is the action-classification result carried by a frame.
// Counts is the server's authoritative running tally.
type ActionEvent struct {
	Action      string          `json:"action,omitempty"`
	Info        ActionInfo      `json:"action_info"`
	Confidence  float64         `json:"confidence"`
	IsNewAction bool            `json:"is_new_action"`
	Counts      map[string]uint `json:"action_counts,omitempty"`
}

// FrameUpdate is the payload of a frame message. Optional sections are nil
// when the server did not compute them for this frame.
type FrameUpdate struct {
	FrameNumber   uint64       `json:"frame_number"`
	TotalFrames   int          `json:"total_frames,omitempty"`
	FPS           float64      `json:"fps,omitempty"`
	Progress      float64      `json:"progress"`
	Width         int          `json:"width,omitempty"`
	Height        int          `json:"height,omitempty"`
	FrameBase64   string       `json:"frame_base64,omitempty"`
	Pose          *Pose        `json:"pose,omitempty"`
	Action        *ActionEvent `json:"action,omitempty"`
	HeatmapSample []Point      `json:"heatmap_data,omitempty"`
}
