// Package scheduler drives the dashboard panels from the frame store on a
// render clock.
//
// Ingest runs on the receive path, once per frame message, and does only
// bounded work: it overwrites the store and feeds the panels whose state
// must not be lost when the store drops a frame (gauge targets, the
// timeline and counters, heatmap samples, the skeleton trail). Tick runs once
// per render tick: it consumes the latest stored frame for the picture,
// progress and biomechanics, then advances every animation by one step.
//
// Ingest and Tick must be called from the same goroutine.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/daviddao/sportvision_viewer/internal/config"
	"github.com/daviddao/sportvision_viewer/internal/framestore"
	"github.com/daviddao/sportvision_viewer/internal/panel"
	"github.com/daviddao/sportvision_viewer/internal/protocol"
)

// Scheduler owns the panels of one dashboard.
type Scheduler struct {
	cfg   config.RenderConfig
	bands panel.Bands
	log   *slog.Logger

	store    *framestore.Store
	gauges   []*panel.Gauge
	heatmap  *panel.Heatmap
	skeleton *panel.Skeleton
	tracker  *panel.Tracker

	frame    protocol.FrameUpdate
	hasFrame bool
	bio      protocol.Biomechanics
	hasBio   bool

	picture      *panel.Picture
	pictureErr   error
	pictureCols  int
	pictureRows  int
	pictureStale bool

	ticks    uint64
	lastTick time.Time
}

// New returns a scheduler with empty panels tuned by cfg.
func New(cfg config.RenderConfig, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		cfg:      cfg,
		bands:    panel.Bands{Warning: cfg.Bands.Warning, Caution: cfg.Bands.Caution},
		log:      log,
		store:    framestore.New(),
		heatmap:  panel.NewHeatmap(cfg.HeatmapEvery, cfg.DefaultWidth, cfg.DefaultHeight),
		skeleton: panel.NewSkeleton(cfg.TrackedJoint, cfg.VisibilityThreshold, cfg.TrailCapacity),
		tracker:  panel.NewTracker(cfg.FlashTicks),
	}
	for _, j := range panel.TrackedJoints {
		s.gauges = append(s.gauges, panel.NewGauge(j, cfg.GaugeAlpha, cfg.GaugeMax))
	}
	return s
}

// Ingest records one frame update from the receive path.
func (s *Scheduler) Ingest(u protocol.FrameUpdate) {
	s.store.Put(u)
	if u.Pose != nil {
		for _, g := range s.gauges {
			if v, ok := u.Pose.JointAngles[g.Joint]; ok {
				g.SetTarget(v)
			}
		}
		s.skeleton.Update(u.Pose.Keypoints)
	}
	s.tracker.Apply(u.Action)
	s.heatmap.Offer(u.FrameNumber, u.HeatmapSample, u.Width, u.Height)
}

// Tick consumes the latest stored frame and advances every animation.
func (s *Scheduler) Tick(now time.Time) {
	if u, ok := s.store.Take(); ok {
		s.frame = u
		s.hasFrame = true
		if u.Pose != nil && u.Pose.Biomechanics != nil {
			s.bio = *u.Pose.Biomechanics
			s.hasBio = true
		}
		s.decodePicture(u)
	} else if s.pictureStale && s.hasFrame {
		s.decodePicture(s.frame)
	}

	for _, g := range s.gauges {
		g.Step()
	}
	s.tracker.Tick()
	s.ticks++
	s.lastTick = now
}

// decodePicture isolates image failures to the video panel: the last good
// picture stays up and every other panel keeps updating.
func (s *Scheduler) decodePicture(u protocol.FrameUpdate) {
	if s.pictureCols == 0 || s.pictureRows == 0 || u.FrameBase64 == "" {
		return
	}
	pic, err := panel.DecodePicture(u.FrameBase64, s.pictureCols, s.pictureRows)
	s.pictureStale = false
	if err != nil {
		s.pictureErr = err
		s.log.Debug("frame image rejected", "frame", u.FrameNumber, "error", err)
		return
	}
	s.picture = pic
	s.pictureErr = nil
}

// SetPictureSize sets the video panel's cell size. A change re-renders the
// current frame on the next tick.
func (s *Scheduler) SetPictureSize(cols, rows int) {
	if cols == s.pictureCols && rows == s.pictureRows {
		return
	}
	s.pictureCols, s.pictureRows = cols, rows
	s.pictureStale = true
}

// Reset clears every panel and the store. Calling it twice is the same as
// calling it once.
func (s *Scheduler) Reset() {
	s.store.Clear()
	for _, g := range s.gauges {
		g.Reset()
	}
	s.heatmap.Reset()
	s.skeleton.Reset()
	s.tracker.Reset()
	s.frame = protocol.FrameUpdate{}
	s.hasFrame = false
	s.bio = protocol.Biomechanics{}
	s.hasBio = false
	s.picture = nil
	s.pictureErr = nil
	s.pictureStale = false
	s.ticks = 0
}

// Configure applies live-tunable render settings: smoothing, bands, flash
// duration and the visibility threshold. Other fields take effect for new
// schedulers only.
func (s *Scheduler) Configure(cfg config.RenderConfig) {
	for _, g := range s.gauges {
		g.SetAlpha(cfg.GaugeAlpha)
	}
	s.bands = panel.Bands{Warning: cfg.Bands.Warning, Caution: cfg.Bands.Caution}
	s.tracker.SetFlashTicks(cfg.FlashTicks)
	s.skeleton.SetThreshold(cfg.VisibilityThreshold)
	s.cfg.GaugeAlpha = cfg.GaugeAlpha
	s.cfg.Bands = cfg.Bands
	s.cfg.FlashTicks = cfg.FlashTicks
	s.cfg.VisibilityThreshold = cfg.VisibilityThreshold
}

// Config returns the render settings in effect.
func (s *Scheduler) Config() config.RenderConfig { return s.cfg }

// Bands returns the gauge colour bands.
func (s *Scheduler) Bands() panel.Bands { return s.bands }

// Gauges returns the joint gauges in display order.
func (s *Scheduler) Gauges() []*panel.Gauge { return s.gauges }

// Heatmap returns the heatmap accumulator.
func (s *Scheduler) Heatmap() *panel.Heatmap { return s.heatmap }

// Skeleton returns the skeleton overlay.
func (s *Scheduler) Skeleton() *panel.Skeleton { return s.skeleton }

// Tracker returns the timeline and counters.
func (s *Scheduler) Tracker() *panel.Tracker { return s.tracker }

// Frame returns the last frame consumed by a tick.
func (s *Scheduler) Frame() (protocol.FrameUpdate, bool) { return s.frame, s.hasFrame }

// Progress returns the analysis progress in [0,1] as of the last tick.
func (s *Scheduler) Progress() float64 {
	return min(max(s.frame.Progress, 0), 1)
}

// Biomechanics returns the last reported biomechanics.
func (s *Scheduler) Biomechanics() (protocol.Biomechanics, bool) { return s.bio, s.hasBio }

// Picture returns the last decoded frame image and the last decode error.
func (s *Scheduler) Picture() (*panel.Picture, error) { return s.picture, s.pictureErr }

// StoreStats returns the frame store counters.
func (s *Scheduler) StoreStats() framestore.Stats { return s.store.Stats() }

// Ticks returns the number of render ticks since the last reset.
func (s *Scheduler) Ticks() uint64 { return s.ticks }

// Run ticks s from clock until the returned cancel is called. fn, when not
// nil, runs after each tick. The clock's goroutine must be the one that
// calls Ingest; TickerClock users forward ticks instead.
func (s *Scheduler) Run(clock Clock, fn func()) func() {
	return clock.OnTick(func(now time.Time) {
		s.Tick(now)
		if fn != nil {
			fn()
		}
	})
}

// LastTick returns the time of the last tick.
func (s *Scheduler) LastTick() time.Time { return s.lastTick }
