package scheduler

import (
	"sync"
	"time"
)

// Clock delivers render ticks. OnTick registers fn and returns a function
// that unregisters it.
type Clock interface {
	OnTick(fn func(now time.Time)) (cancel func())
}

// TickerClock ticks at a fixed interval from its own goroutine. Callers that
// own state on another goroutine forward the tick (the TUI does so through
// tea.Program.Send).
type TickerClock struct {
	Interval time.Duration
}

// OnTick implements Clock.
func (c TickerClock) OnTick(fn func(time.Time)) func() {
	t := time.NewTicker(c.Interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case now := <-t.C:
				fn(now)
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			t.Stop()
			close(done)
		})
	}
}

// ManualClock ticks only when Advance is called, on the caller's goroutine.
type ManualClock struct {
	now   time.Time
	step  time.Duration
	next  int
	funcs map[int]func(time.Time)
}

// NewManualClock returns a clock starting at start that moves by step per
// tick.
func NewManualClock(start time.Time, step time.Duration) *ManualClock {
	return &ManualClock{now: start, step: step, funcs: map[int]func(time.Time){}}
}

// OnTick implements Clock.
func (c *ManualClock) OnTick(fn func(time.Time)) func() {
	id := c.next
	c.next++
	c.funcs[id] = fn
	return func() { delete(c.funcs, id) }
}

// Advance fires n ticks.
func (c *ManualClock) Advance(n int) {
	for i := 0; i < n; i++ {
		c.now = c.now.Add(c.step)
		for id := 0; id < c.next; id++ {
			if fn, ok := c.funcs[id]; ok {
				fn(c.now)
			}
		}
	}
}

// Now returns the time of the last tick.
func (c *ManualClock) Now() time.Time { return c.now }
