// Package snapshot builds immutable snapshots of a running dashboard.
//
// A DashboardSnapshot captures the session lifecycle and every panel's state
// at a point in time. It is what headless mode prints and what the history
// database records when a session ends.
package snapshot

import (
	"math"
	"time"

	"github.com/daviddao/sportvision_viewer/internal/panel"
	"github.com/daviddao/sportvision_viewer/internal/protocol"
	"github.com/daviddao/sportvision_viewer/internal/scheduler"
	"github.com/daviddao/sportvision_viewer/internal/session"
)

// DashboardSnapshot is a self-contained view of one session.
type DashboardSnapshot struct {
	SessionID       string        `json:"session_id"`
	ServerSessionID string        `json:"server_session_id,omitempty"`
	Source          string        `json:"source"`
	SourceRef       string        `json:"source_ref"` // demo id or upload path
	Sport           string        `json:"sport"`
	State           session.State `json:"state"`
	Analyzing       bool          `json:"analyzing"`
	Status          string        `json:"status"`
	Progress        float64       `json:"progress"`

	// Counts.
	FramesReceived uint64 `json:"frames_received"`
	FramesRendered uint64 `json:"frames_rendered"`
	FramesDropped  uint64 `json:"frames_dropped"`
	ProtocolErrors uint64 `json:"protocol_errors"`
	LastFrame      uint64 `json:"last_frame"`
	TotalFrames    int    `json:"total_frames"`

	Gauges        []GaugeReading         `json:"gauges"`
	Biomechanics  *protocol.Biomechanics `json:"biomechanics,omitempty"`
	CurrentAction *ActionReading         `json:"current_action,omitempty"`
	Counts        map[string]uint        `json:"counts"`
	Timeline      []panel.Entry          `json:"timeline"`
	HeatmapPoints int                    `json:"heatmap_points"`
	TrailLength   int                    `json:"trail_length"`

	// Timestamp of snapshot creation.
	BuiltAt time.Time `json:"built_at"`
}

// GaugeReading is one joint gauge.
type GaugeReading struct {
	Joint   string  `json:"joint"`
	Current float64 `json:"current"`
	Target  float64 `json:"target"`
	Band    string  `json:"band"`
}

// ActionReading is the current action card.
type ActionReading struct {
	Action     string  `json:"action"`
	Label      string  `json:"label"`
	Icon       string  `json:"icon"`
	Confidence float64 `json:"confidence"`
}

// Build captures sess and the panels driven by sched.
func Build(sess *session.Session, sched *scheduler.Scheduler) *DashboardSnapshot {
	src := sess.Source()
	ref := src.ID
	if src.Source == protocol.SourceUpload {
		ref = src.Path
	}
	stats := sched.StoreStats()
	frame, _ := sched.Frame()
	tracker := sched.Tracker()

	snap := &DashboardSnapshot{
		SessionID:       sess.ID(),
		ServerSessionID: sess.ServerSessionID(),
		Source:          string(src.Source),
		SourceRef:       ref,
		Sport:           sess.Sport(),
		State:           sess.State(),
		Analyzing:       sess.Analyzing(),
		Status:          sess.Status(),
		Progress:        sched.Progress(),
		FramesReceived:  sess.Frames(),
		FramesRendered:  stats.Taken,
		FramesDropped:   stats.Dropped,
		ProtocolErrors:  sess.ProtocolErrors(),
		LastFrame:       frame.FrameNumber,
		TotalFrames:     frame.TotalFrames,
		Counts:          tracker.Counts(),
		Timeline:        tracker.Entries(),
		HeatmapPoints:   sched.Heatmap().Len(),
		TrailLength:     len(sched.Skeleton().Trail()),
		BuiltAt:         time.Now(),
	}

	bands := sched.Bands()
	for _, g := range sched.Gauges() {
		snap.Gauges = append(snap.Gauges, GaugeReading{
			Joint:   g.Joint,
			Current: round2(g.Current()),
			Target:  g.Target(),
			Band:    bands.Classify(g.Current()).String(),
		})
	}
	if bio, ok := sched.Biomechanics(); ok {
		snap.Biomechanics = &bio
	}
	if a, ok := tracker.Current(); ok {
		snap.CurrentAction = &ActionReading{
			Action:     a.Action,
			Label:      a.Info.Label(),
			Icon:       a.Info.Icon,
			Confidence: a.Confidence,
		}
	}
	if snap.Timeline == nil {
		snap.Timeline = []panel.Entry{}
	}
	return snap
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
