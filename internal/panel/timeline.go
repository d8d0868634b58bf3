package panel

import (
	"sort"

	"github.com/daviddao/sportvision_viewer/internal/protocol"
)

// DefaultFlashTicks is how long the current-action emphasis lasts.
const DefaultFlashTicks = 12

// ActionMeta describes an action type in the stats grid.
type ActionMeta struct {
	Key   string
	Icon  string
	Label string
}

// KnownActions is the stats grid order.
var KnownActions = []ActionMeta{
	{"serve", "🎯", "Serve"},
	{"smash", "💥", "Smash"},
	{"forehand", "➡️", "Forehand"},
	{"backhand", "⬅️", "Backhand"},
	{"lob", "🌈", "Lob"},
	{"drop", "🪶", "Drop"},
}

// Entry is one timeline item.
type Entry struct {
	Icon     string `json:"icon"`
	Label    string `json:"label"`
	Color    string `json:"color"`
	Sequence int    `json:"sequence"`
}

// Stat is one cell of the stats grid.
type Stat struct {
	ActionMeta
	Count uint
}

// Tracker mirrors the server's action counters and keeps the timeline of new
// actions. The timeline only grows during a session; novelty is decided by the
// server, so entries are never deduplicated here.
type Tracker struct {
	entries []Entry
	counts  map[string]uint

	current    protocol.ActionEvent
	hasCurrent bool

	flash      int
	flashTicks int
}

// NewTracker returns an empty tracker whose flash lasts flashTicks ticks.
func NewTracker(flashTicks int) *Tracker {
	if flashTicks <= 0 {
		flashTicks = DefaultFlashTicks
	}
	return &Tracker{counts: map[string]uint{}, flashTicks: flashTicks}
}

// SetFlashTicks changes the flash duration for future flashes.
func (t *Tracker) SetFlashTicks(n int) {
	if n > 0 {
		t.flashTicks = n
	}
}

// Apply records an action event and reports whether a timeline entry was
// appended. A nil event changes nothing.
func (t *Tracker) Apply(a *protocol.ActionEvent) bool {
	if a == nil {
		return false
	}
	t.current = *a
	t.hasCurrent = true
	if a.Counts != nil {
		counts := make(map[string]uint, len(a.Counts))
		for k, v := range a.Counts {
			counts[k] = v
		}
		t.counts = counts
	}
	if !a.IsNewAction {
		return false
	}
	t.entries = append(t.entries, Entry{
		Icon:     a.Info.Icon,
		Label:    a.Info.Label(),
		Color:    a.Info.Color,
		Sequence: len(t.entries) + 1,
	})
	t.flash = t.flashTicks
	return true
}

// Tick advances the flash by one render tick.
func (t *Tracker) Tick() {
	if t.flash > 0 {
		t.flash--
	}
}

// Flashing reports whether the current-action emphasis is showing.
func (t *Tracker) Flashing() bool { return t.flash > 0 }

// Current returns the latest action event.
func (t *Tracker) Current() (protocol.ActionEvent, bool) {
	return t.current, t.hasCurrent
}

// Entries returns the timeline in arrival order.
func (t *Tracker) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Counts returns a copy of the mirrored counters.
func (t *Tracker) Counts() map[string]uint {
	out := make(map[string]uint, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Stats returns the grid cells: known actions first, then any other counted
// action sorted by key.
func (t *Tracker) Stats() []Stat {
	stats := make([]Stat, 0, len(KnownActions))
	known := make(map[string]bool, len(KnownActions))
	for _, m := range KnownActions {
		known[m.Key] = true
		stats = append(stats, Stat{ActionMeta: m, Count: t.counts[m.Key]})
	}
	var extra []string
	for k := range t.counts {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		stats = append(stats, Stat{ActionMeta: ActionMeta{Key: k, Icon: "•", Label: k}, Count: t.counts[k]})
	}
	return stats
}

// Reset clears the timeline, the counters and the current action.
func (t *Tracker) Reset() {
	t.entries = nil
	t.counts = map[string]uint{}
	t.current = protocol.ActionEvent{}
	t.hasCurrent = false
	t.flash = 0
}
