package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/daviddao/sportvision_viewer/internal/panel"
	"github.com/daviddao/sportvision_viewer/internal/session"
	"github.com/daviddao/sportvision_viewer/internal/snapshot"
)

func newRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func snap(id string, state session.State, at time.Time) *snapshot.DashboardSnapshot {
	return &snapshot.DashboardSnapshot{
		SessionID:      id,
		Source:         "demo",
		SourceRef:      "demo1",
		Sport:          "badminton",
		State:          state,
		Status:         state.String(),
		FramesReceived: 120,
		FramesDropped:  7,
		Counts:         map[string]uint{"smash": 3},
		Timeline:       []panel.Entry{{Icon: "💥", Label: "Smash", Color: "#ff3366", Sequence: 1}},
		BuiltAt:        at,
	}
}

func TestRecordAndList(t *testing.T) {
	r := newRecorder(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := r.Record(ctx, snap("a", session.Complete, base)); err != nil {
		t.Fatalf("Record a: %v", err)
	}
	if err := r.Record(ctx, snap("b", session.Stopped, base.Add(time.Minute))); err != nil {
		t.Fatalf("Record b: %v", err)
	}

	recs, err := r.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].SessionID != "b" || recs[1].SessionID != "a" {
		t.Errorf("order = %s, %s", recs[0].SessionID, recs[1].SessionID)
	}
	got := recs[1]
	if got.State != "Complete" || got.FramesReceived != 120 || got.FramesDropped != 7 {
		t.Errorf("record = %+v", got)
	}
	if got.Counts["smash"] != 3 || len(got.Timeline) != 1 || got.Timeline[0].Label != "Smash" {
		t.Errorf("counts/timeline = %v %v", got.Counts, got.Timeline)
	}
	if !got.FinishedAt.Equal(base) {
		t.Errorf("FinishedAt = %v", got.FinishedAt)
	}
}

func TestRecordReplaces(t *testing.T) {
	r := newRecorder(t)
	ctx := context.Background()
	now := time.Now()

	r.Record(ctx, snap("a", session.Stopped, now))
	r.Record(ctx, snap("a", session.Complete, now))

	recs, err := r.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 || recs[0].State != "Complete" {
		t.Errorf("records = %+v", recs)
	}
}

func TestListLimit(t *testing.T) {
	r := newRecorder(t)
	ctx := context.Background()
	now := time.Now()
	for _, id := range []string{"a", "b", "c"} {
		r.Record(ctx, snap(id, session.Complete, now))
	}
	recs, err := r.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("expected 2 records, got %d", len(recs))
	}
}
