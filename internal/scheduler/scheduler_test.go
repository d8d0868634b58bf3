package scheduler

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/daviddao/sportvision_viewer/internal/config"
	"github.com/daviddao/sportvision_viewer/internal/logging"
	"github.com/daviddao/sportvision_viewer/internal/panel"
	"github.com/daviddao/sportvision_viewer/internal/protocol"
)

func newScheduler() *Scheduler {
	return New(config.Default().Render, logging.Discard())
}

func frame(n uint64, newAction bool) protocol.FrameUpdate {
	u := protocol.FrameUpdate{
		FrameNumber: n,
		Progress:    float64(n) / 100,
		Width:       960,
		Height:      540,
		Pose: &protocol.Pose{
			JointAngles:  map[string]float64{"right_elbow": 150, "left_knee": 90},
			Biomechanics: &protocol.Biomechanics{WristSpeed: float64(n)},
			Keypoints:    []protocol.Keypoint{{Name: "right_wrist", X: float64(n), Y: 1, Visibility: 0.9}},
		},
		Action: &protocol.ActionEvent{
			Action:      "smash",
			Info:        protocol.ActionInfo{Name: "Smash"},
			IsNewAction: newAction,
			Counts:      map[string]uint{"smash": uint(n)},
		},
		HeatmapSample: []protocol.Point{{X: float64(n), Y: 270}},
	}
	return u
}

func TestBurstKeepsTimelineAndTrail(t *testing.T) {
	s := newScheduler()
	clock := NewManualClock(time.Unix(0, 0), time.Second/30)
	cancel := s.Run(clock, nil)
	defer cancel()

	// Twenty frames arrive between two ticks: the store keeps one, the
	// receive-path panels keep everything.
	newActions := 0
	for i := uint64(1); i <= 20; i++ {
		isNew := i%3 == 0
		if isNew {
			newActions++
		}
		s.Ingest(frame(i, isNew))
	}
	clock.Advance(1)

	if got := len(s.Tracker().Entries()); got != newActions {
		t.Errorf("timeline = %d, want %d", got, newActions)
	}
	if got := len(s.Skeleton().Trail()); got != 15 {
		t.Errorf("trail = %d, want 15", got)
	}
	if got := s.Heatmap().Len(); got != 2 { // frames 10 and 20
		t.Errorf("heatmap = %d, want 2", got)
	}
	if f, _ := s.Frame(); f.FrameNumber != 20 {
		t.Errorf("rendered frame = %d, want 20", f.FrameNumber)
	}
	st := s.StoreStats()
	if st.Writes != 20 || st.Taken != 1 || st.Dropped != 19 {
		t.Errorf("store stats = %+v", st)
	}
}

func TestProgressReadsAfterTick(t *testing.T) {
	s := newScheduler()
	s.Ingest(protocol.FrameUpdate{FrameNumber: 1, Progress: 0.42})
	if s.Progress() != 0 {
		t.Error("progress should not change before a tick")
	}
	s.Tick(time.Now())
	if got := math.Round(s.Progress() * 100); got != 42 {
		t.Errorf("progress = %v%%, want 42%%", got)
	}
}

func TestGaugesConvergeOnTicks(t *testing.T) {
	s := newScheduler()
	clock := NewManualClock(time.Unix(0, 0), time.Second/30)
	s.Run(clock, nil)

	s.Ingest(frame(1, false))
	clock.Advance(30)

	for _, g := range s.Gauges() {
		switch g.Joint {
		case "right_elbow":
			if math.Abs(g.Current()-150) > 150*0.008 {
				t.Errorf("right_elbow = %v after 30 ticks", g.Current())
			}
		case "left_knee":
			if g.Target() != 90 {
				t.Errorf("left_knee target = %v", g.Target())
			}
		default:
			if g.Current() != 0 {
				t.Errorf("%s moved without a reading: %v", g.Joint, g.Current())
			}
		}
	}
	if s.Ticks() != 30 {
		t.Errorf("Ticks = %d", s.Ticks())
	}
}

func TestMissingFieldsKeepLastValues(t *testing.T) {
	s := newScheduler()
	s.Ingest(frame(1, false))
	s.Tick(time.Now())
	s.Ingest(protocol.FrameUpdate{FrameNumber: 2, Progress: 0.5})
	s.Tick(time.Now())

	bio, ok := s.Biomechanics()
	if !ok || bio.WristSpeed != 1 {
		t.Errorf("biomechanics = %+v, %v", bio, ok)
	}
	if s.Tracker().Counts()["smash"] != 1 {
		t.Error("counts should persist across frames without an action")
	}
	if len(s.Skeleton().Joints()) != 1 {
		t.Error("pose should persist across frames without keypoints")
	}
}

func TestResetIdempotent(t *testing.T) {
	s := newScheduler()
	for i := uint64(1); i <= 10; i++ {
		s.Ingest(frame(i, true))
		s.Tick(time.Now())
	}
	s.Reset()
	s.Reset()

	if s.Heatmap().Len() != 0 || len(s.Tracker().Entries()) != 0 {
		t.Error("heatmap and timeline should be empty")
	}
	for _, g := range s.Gauges() {
		if g.Current() != 0 || g.Target() != 0 {
			t.Errorf("%s = %v/%v after reset", g.Joint, g.Current(), g.Target())
		}
	}
	if _, ok := s.Frame(); ok {
		t.Error("frame should be cleared")
	}
	if st := s.StoreStats(); st.Writes != 0 {
		t.Errorf("store not cleared: %+v", st)
	}
}

func pngFrame(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 9))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestBadImageIsolated(t *testing.T) {
	s := newScheduler()
	s.SetPictureSize(8, 4)

	good := frame(1, false)
	good.FrameBase64 = pngFrame(t)
	s.Ingest(good)
	s.Tick(time.Now())
	if pic, err := s.Picture(); pic == nil || err != nil {
		t.Fatalf("Picture = %v, %v", pic, err)
	}

	bad := frame(2, true)
	bad.FrameBase64 = "%%%"
	s.Ingest(bad)
	s.Tick(time.Now())

	pic, err := s.Picture()
	var re *panel.RenderError
	if !errors.As(err, &re) {
		t.Errorf("err = %v, want *panel.RenderError", err)
	}
	if pic == nil {
		t.Error("last good picture should stay")
	}
	if len(s.Tracker().Entries()) != 1 {
		t.Error("timeline must update despite a bad image")
	}
	if f, _ := s.Frame(); f.FrameNumber != 2 {
		t.Error("progress and metadata must update despite a bad image")
	}
}

func TestPictureResizeRedecodes(t *testing.T) {
	s := newScheduler()
	u := frame(1, false)
	u.FrameBase64 = pngFrame(t)
	s.Ingest(u)
	s.Tick(time.Now()) // no size yet: nothing decoded

	if pic, _ := s.Picture(); pic != nil {
		t.Fatal("no picture expected before the panel has a size")
	}
	s.SetPictureSize(6, 3)
	s.Tick(time.Now())
	pic, _ := s.Picture()
	if pic == nil {
		t.Fatal("resize should decode the current frame")
	}
	if c, r := pic.Cells(); c != 6 || r != 3 {
		t.Errorf("Cells = %d,%d", c, r)
	}
}

func TestConfigureLive(t *testing.T) {
	s := newScheduler()
	cfg := config.Default().Render
	cfg.GaugeAlpha = 1
	cfg.Bands = config.BandsConfig{Warning: 10, Caution: 20}
	cfg.VisibilityThreshold = 0.95
	s.Configure(cfg)

	s.Ingest(frame(1, false))
	s.Tick(time.Now())
	for _, g := range s.Gauges() {
		if g.Joint == "right_elbow" && g.Current() != 150 {
			t.Errorf("alpha 1 should snap, got %v", g.Current())
		}
	}
	if s.Bands().Caution != 20 {
		t.Errorf("Bands = %+v", s.Bands())
	}
	if len(s.Skeleton().Joints()) != 0 {
		t.Error("threshold 0.95 should hide a 0.9 joint")
	}
}

func TestManualClockCancel(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0), time.Second)
	n := 0
	cancel := clock.OnTick(func(time.Time) { n++ })
	clock.Advance(2)
	cancel()
	clock.Advance(2)
	if n != 2 {
		t.Errorf("ticks = %d, want 2", n)
	}
	if !clock.Now().Equal(time.Unix(4, 0)) {
		t.Errorf("Now = %v", clock.Now())
	}
}

func TestTickerClock(t *testing.T) {
	ticks := make(chan time.Time, 8)
	cancel := TickerClock{Interval: 5 * time.Millisecond}.OnTick(func(now time.Time) {
		select {
		case ticks <- now:
		default:
		}
	})
	defer cancel()

	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("no tick from TickerClock")
	}
	cancel()
	cancel() // idempotent
}
