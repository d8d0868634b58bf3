package framestore

import (
	"testing"

	"github.com/daviddao/sportvision_viewer/internal/protocol"
)

func frame(n uint64) protocol.FrameUpdate {
	return protocol.FrameUpdate{FrameNumber: n, Progress: float64(n) / 10}
}

func TestEmptyStore(t *testing.T) {
	s := New()
	if _, ok := s.Take(); ok {
		t.Error("Take on empty store should report no frame")
	}
	if _, ok := s.Latest(); ok {
		t.Error("Latest on empty store should report no frame")
	}
}

func TestLastWriteWinsByArrivalOrder(t *testing.T) {
	s := New()
	for _, n := range []uint64{1, 3, 2} {
		s.Put(frame(n))
	}

	got, ok := s.Take()
	if !ok {
		t.Fatal("expected a frame")
	}
	if got.FrameNumber != 2 {
		t.Errorf("FrameNumber = %d, want 2 (last processed, not numerically latest)", got.FrameNumber)
	}
}

func TestTakeConsumesOnce(t *testing.T) {
	s := New()
	s.Put(frame(5))

	if _, ok := s.Take(); !ok {
		t.Fatal("first Take should return the frame")
	}
	if _, ok := s.Take(); ok {
		t.Error("second Take should report nothing new")
	}
	if got, ok := s.Latest(); !ok || got.FrameNumber != 5 {
		t.Errorf("Latest = %d,%v, want 5,true", got.FrameNumber, ok)
	}
}

func TestDropAccounting(t *testing.T) {
	s := New()
	s.Put(frame(1))
	s.Put(frame(2)) // drops 1
	s.Take()
	s.Put(frame(3))
	s.Put(frame(3)) // repeat frame number, drops the first 3
	s.Take()

	st := s.Stats()
	if st.Writes != 4 || st.Taken != 2 || st.Dropped != 2 {
		t.Errorf("Stats = %+v, want writes=4 taken=2 dropped=2", st)
	}
}

func TestClear(t *testing.T) {
	s := New()
	s.Put(frame(1))
	s.Put(frame(2))
	s.Clear()

	if _, ok := s.Latest(); ok {
		t.Error("Latest after Clear should be empty")
	}
	if st := s.Stats(); st != (Stats{}) {
		t.Errorf("Stats after Clear = %+v, want zero", st)
	}
}
