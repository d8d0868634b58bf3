package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/daviddao/sportvision_viewer/internal/config"
	"github.com/daviddao/sportvision_viewer/internal/history"
	"github.com/daviddao/sportvision_viewer/internal/protocol"
	"github.com/daviddao/sportvision_viewer/internal/scheduler"
	"github.com/daviddao/sportvision_viewer/internal/session"
	"github.com/daviddao/sportvision_viewer/internal/snapshot"
)

// headless runs one session without a terminal UI and reports the final
// dashboard state.
type headless struct {
	cfg    *config.Config
	log    *slog.Logger
	dial   dialFunc
	clock  scheduler.Clock
	record *history.Recorder
}

// run analyses start to completion. Cancelling ctx stops the analysis and
// waits up to the stop ack timeout for the server to confirm. The returned
// snapshot is non-nil once the session exists, even on error.
func (h headless) run(ctx context.Context, start protocol.Start) (*snapshot.DashboardSnapshot, error) {
	sched := scheduler.New(h.cfg.Render, h.log)
	sess, err := session.New(start, session.Options{
		Sport:     h.cfg.Sport,
		Sink:      sched,
		Resetters: []session.Resetter{sched},
		Logger:    h.log,
	})
	if err != nil {
		return nil, err
	}
	sess.Subscribe(sessionFinished(sched, h.log, func(snap *snapshot.DashboardSnapshot) {
		saveSession(h.record, snap, h.log)
	}))
	if err := sess.Start(); err != nil {
		return nil, err
	}

	// Ticks arrive on the clock's goroutine; a tick the loop is too busy to
	// take is skipped.
	ticks := make(chan time.Time, 1)
	cancel := h.clock.OnTick(func(now time.Time) {
		select {
		case ticks <- now:
		default:
		}
	})
	defer cancel()

	c, err := h.dial(ctx, h.cfg.Server.SocketURL(), h.cfg.Server.ConnectTimeout)
	if err != nil {
		sess.DialFailed(err)
		return snapshot.Build(sess, sched), err
	}
	if err := sess.Opened(c); err != nil {
		return snapshot.Build(sess, sched), err
	}

	events := c.Events()
	done := ctx.Done()
	var stopWait <-chan time.Time
loop:
	for waiting(sess) {
		select {
		case ev, ok := <-events:
			if !ok || ev.Closed {
				sess.TransportClosed(ev.Err)
				break loop
			}
			_ = sess.Receive(ev.Payload)
		case now := <-ticks:
			sched.Tick(now)
		case <-done:
			done = nil
			if sess.State().Live() {
				_ = sess.Stop()
			}
			// Zero waits for the ack as long as the server keeps the
			// transport open.
			if wait := h.cfg.Server.StopAckTimeout; wait > 0 {
				stopWait = time.After(wait)
			}
		case <-stopWait:
			h.log.Debug("stop ack timed out", "session_id", sess.ID())
			break loop
		}
	}

	sched.Tick(time.Now())
	sess.CloseTransport()
	snap := snapshot.Build(sess, sched)
	if sess.State() == session.Error {
		return snap, fmt.Errorf("analysis failed: %s", sess.Status())
	}
	return snap, nil
}

// waiting reports whether the session still expects server messages.
func waiting(s *session.Session) bool {
	st := s.State()
	return st.Live() || (st == session.Stopped && s.HasTransport())
}
