// Package framestore holds the most recent frame update between the receive
// path and the render loop.
//
// The store is a single-slot mailbox: Put overwrites, Take consumes. A frame
// that is overwritten before it was taken counts as dropped. Ordering is
// arrival order, not frame number; frame numbers are advisory and may repeat
// or skip.
//
// A Store is not safe for concurrent use. Writers and readers run on the
// same goroutine (the UI event loop), so a write never interleaves with a read.
package framestore

import "github.com/daviddao/sportvision_viewer/internal/protocol"

// Store is a last-write-wins frame slot.
type Store struct {
	latest protocol.FrameUpdate
	has    bool // a value is held (consumed or not)
	fresh  bool // the held value has not been taken yet

	writes  uint64
	taken   uint64
	dropped uint64
}

// Stats reports store throughput for the session so far.
type Stats struct {
	Writes  uint64 // frames put
	Taken   uint64 // frames consumed by the render loop
	Dropped uint64 // frames overwritten before consumption
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Put replaces the held update wholesale.
func (s *Store) Put(u protocol.FrameUpdate) {
	if s.fresh {
		s.dropped++
	}
	s.latest = u
	s.has = true
	s.fresh = true
	s.writes++
}

// Take returns the held update if it has not been consumed yet.
func (s *Store) Take() (protocol.FrameUpdate, bool) {
	if !s.fresh {
		return protocol.FrameUpdate{}, false
	}
	s.fresh = false
	s.taken++
	return s.latest, true
}

// Latest returns the last update put, consumed or not.
func (s *Store) Latest() (protocol.FrameUpdate, bool) {
	return s.latest, s.has
}

// Clear empties the slot and resets the counters.
func (s *Store) Clear() {
	*s = Store{}
}

// Stats returns the current counters.
func (s *Store) Stats() Stats {
	return Stats{Writes: s.writes, Taken: s.taken, Dropped: s.dropped}
}
