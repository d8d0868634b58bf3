package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/daviddao/sportvision_viewer/internal/config"
	"github.com/daviddao/sportvision_viewer/internal/logging"
	"github.com/daviddao/sportvision_viewer/internal/protocol"
	"github.com/daviddao/sportvision_viewer/internal/scheduler"
	"github.com/daviddao/sportvision_viewer/internal/session"
)

type nopTransport struct{}

func (nopTransport) Send([]byte) error { return nil }
func (nopTransport) Close() error      { return nil }

// newRun starts a demo session wired to a fresh scheduler.
func newRun(t *testing.T) (*session.Session, *scheduler.Scheduler) {
	t.Helper()
	sched := scheduler.New(config.Default().Render, logging.Discard())
	s, err := session.New(protocol.Start{Source: protocol.SourceDemo, ID: "demo1"}, session.Options{
		Sport:     "tennis",
		Sink:      sched,
		Resetters: []session.Resetter{sched},
		Logger:    logging.Discard(),
	})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Opened(nopTransport{}); err != nil {
		t.Fatalf("Opened: %v", err)
	}
	return s, sched
}

func TestBuildIdleDashboard(t *testing.T) {
	s, sched := newRun(t)

	snap := Build(s, sched)
	if snap.State != session.Started || !snap.Analyzing {
		t.Errorf("state = %s analyzing=%v", snap.State, snap.Analyzing)
	}
	if snap.SessionID != s.ID() || snap.Source != "demo" || snap.SourceRef != "demo1" {
		t.Errorf("identity = %+v", snap)
	}
	if len(snap.Gauges) != 4 {
		t.Errorf("expected 4 gauges, got %d", len(snap.Gauges))
	}
	for _, g := range snap.Gauges {
		if g.Current != 0 || g.Band != "warning" {
			t.Errorf("gauge %+v", g)
		}
	}
	if snap.Biomechanics != nil || snap.CurrentAction != nil {
		t.Error("no biomechanics or action expected before frames")
	}
	if snap.Timeline == nil {
		t.Error("Timeline should be an empty list, not nil")
	}
	if snap.BuiltAt.IsZero() {
		t.Error("BuiltAt should not be zero")
	}
}

func TestBuildAfterFrames(t *testing.T) {
	s, sched := newRun(t)
	s.Receive([]byte(`{"type":"started","session_id":"srv"}`))
	for i, isNew := range []bool{true, false, true} {
		payload := fmt.Sprintf(`{"type":"frame","data":{"frame_number":%d,"total_frames":300,"progress":0.5,`+
			`"pose":{"joint_angles":{"right_elbow":130},`+
			`"biomechanics":{"wrist_speed":12.5,"body_lean":5,"knee_bend":30,"symmetry_score":80}},`+
			`"action":{"action":"smash","action_info":{"name":"Smash","icon":"💥","color":"#ff3366"},`+
			`"confidence":0.87,"is_new_action":%t,"action_counts":{"smash":2}}}}`, i+1, isNew)
		if err := s.Receive([]byte(payload)); err != nil {
			t.Fatalf("Receive: %v", err)
		}
	}
	for i := 0; i < 40; i++ {
		sched.Tick(time.Now())
	}
	s.Receive([]byte(`{"type":"complete"}`))

	snap := Build(s, sched)
	if snap.State != session.Complete || snap.Analyzing {
		t.Errorf("state = %s", snap.State)
	}
	if snap.FramesReceived != 3 || snap.FramesRendered != 1 || snap.FramesDropped != 2 {
		t.Errorf("frames = %d/%d/%d", snap.FramesReceived, snap.FramesRendered, snap.FramesDropped)
	}
	if snap.LastFrame != 3 || snap.TotalFrames != 300 || snap.Progress != 0.5 {
		t.Errorf("frame meta = %d %d %v", snap.LastFrame, snap.TotalFrames, snap.Progress)
	}
	if len(snap.Timeline) != 2 || snap.Counts["smash"] != 2 {
		t.Errorf("timeline = %d counts = %v", len(snap.Timeline), snap.Counts)
	}
	if snap.CurrentAction == nil || snap.CurrentAction.Label != "Smash" {
		t.Errorf("current action = %+v", snap.CurrentAction)
	}
	if snap.Biomechanics == nil || snap.Biomechanics.WristSpeed != 12.5 {
		t.Errorf("biomechanics = %+v", snap.Biomechanics)
	}
	for _, g := range snap.Gauges {
		if g.Joint == "right_elbow" && (g.Band != "nominal" || g.Target != 130) {
			t.Errorf("right_elbow = %+v", g)
		}
	}
	if snap.ServerSessionID != "srv" {
		t.Errorf("ServerSessionID = %q", snap.ServerSessionID)
	}
}

func TestSnapshotJSON(t *testing.T) {
	s, sched := newRun(t)
	data, err := json.Marshal(Build(s, sched))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out := string(data)
	for _, want := range []string{`"state":"Started"`, `"sport":"tennis"`, `"timeline":[]`, `"joint":"right_elbow"`} {
		if !strings.Contains(out, want) {
			t.Errorf("JSON missing %s: %s", want, out)
		}
	}
}
