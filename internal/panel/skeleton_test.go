package panel

import (
	"testing"

	"github.com/daviddao/sportvision_viewer/internal/protocol"
)

func kp(name string, x, y, vis float64) protocol.Keypoint {
	return protocol.Keypoint{Name: name, X: x, Y: y, Visibility: vis}
}

func TestSkeletonVisibilityGate(t *testing.T) {
	s := NewSkeleton("right_wrist", 0.5, 15)
	s.Update([]protocol.Keypoint{
		kp("right_shoulder", 10, 10, 1.0),
		kp("right_elbow", 20, 20, 0.49),
		kp("right_wrist", 30, 30, 1.0),
	})

	if segs := s.Segments(); len(segs) != 0 {
		t.Errorf("expected no segments through a 0.49 joint, got %+v", segs)
	}
	for _, j := range s.Joints() {
		if j.Name == "right_elbow" {
			t.Error("joint with visibility 0.49 must not be drawn")
		}
	}
	if len(s.Joints()) != 2 {
		t.Errorf("Joints() = %d, want 2", len(s.Joints()))
	}

	c := NewCanvas(30, 10)
	s.Draw(c, 1, 1)
	if c.Lit(20, 20) {
		t.Error("hidden joint position should not be lit")
	}
	if !c.Lit(10, 10) {
		t.Error("visible joint should be lit")
	}
}

func TestSkeletonSegments(t *testing.T) {
	s := NewSkeleton("", 0.5, 0)
	s.Update([]protocol.Keypoint{
		kp("left_shoulder", 0, 0, 0.9),
		kp("right_shoulder", 10, 0, 0.9),
		kp("left_hip", 0, 10, 0.9),
		kp("left_knee", 0, 20, 0.51),
		kp("left_ankle", 0, 30, 0.5), // not strictly above threshold
	})

	parts := map[Part]int{}
	for _, seg := range s.Segments() {
		parts[seg.Part]++
	}
	if parts[PartTorso] != 2 {
		t.Errorf("torso segments = %d, want 2", parts[PartTorso])
	}
	if parts[PartLeftLeg] != 1 {
		t.Errorf("left leg segments = %d, want 1 (hip-knee only)", parts[PartLeftLeg])
	}
}

func TestSkeletonTrailCapacity(t *testing.T) {
	s := NewSkeleton("right_wrist", 0.5, 15)
	for i := 0; i < 20; i++ {
		s.Update([]protocol.Keypoint{kp("right_wrist", float64(i), 0, 0.9)})
	}
	s.Update([]protocol.Keypoint{kp("right_wrist", 99, 0, 0.3)}) // hidden, not appended

	trail := s.Trail()
	if len(trail) != 15 {
		t.Fatalf("trail length = %d, want 15", len(trail))
	}
	if trail[0].X != 5 || trail[14].X != 19 {
		t.Errorf("trail = %v..%v, want 5..19", trail[0].X, trail[14].X)
	}
}

func TestSkeletonEmptyUpdateKeepsPose(t *testing.T) {
	s := NewSkeleton("right_wrist", 0.5, 15)
	s.Update([]protocol.Keypoint{kp("nose", 1, 1, 1)})
	s.Update(nil)
	if len(s.Joints()) != 1 {
		t.Error("an update without keypoints should leave the last pose")
	}
}

func TestSkeletonReset(t *testing.T) {
	s := NewSkeleton("right_wrist", 0.5, 15)
	s.Update([]protocol.Keypoint{kp("right_wrist", 1, 1, 1), kp("right_elbow", 2, 2, 1)})
	s.Reset()
	s.Reset()
	if len(s.Trail()) != 0 || len(s.Joints()) != 0 {
		t.Error("Reset should clear trail and pose")
	}
	if len(Connections) != 12 {
		t.Errorf("connection graph changed: %d", len(Connections))
	}
}
