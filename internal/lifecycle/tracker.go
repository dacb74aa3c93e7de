package lifecycle

import (
	"sort"
	"sync"
	"time"
)

// PhaseChange records an event moving from one phase to another between two
// evaluations.
type PhaseChange struct {
	EventID  string    `json:"event_id"`
	Previous Phase     `json:"previous_phase"`
	Current  Phase     `json:"current_phase"`
	At       time.Time `json:"at"`
}

// Tracker remembers the last phase reported for each tracked event so that
// periodic re-evaluation only reports transitions. It owns no timer; callers
// drive it by calling Evaluate on their own schedule.
type Tracker struct {
	location *time.Location

	mu      sync.Mutex
	entries map[string]*trackedWindow
}

type trackedWindow struct {
	window    Window
	phase     Phase
	evaluated bool
	// rescheduled is set when the window was replaced after its phase was
	// recorded; the next evaluation reports any change, backwards included.
	rescheduled bool
}

// NewTracker creates a tracker that interprets windows in loc.
// A nil location means the local time zone.
func NewTracker(loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.Local
	}
	return &Tracker{
		location: loc,
		entries:  make(map[string]*trackedWindow),
	}
}

// Location returns the time zone the tracker resolves windows in.
func (t *Tracker) Location() *time.Location {
	return t.location
}

// Track installs the window for an event. A window that differs from the one
// already tracked replaces it wholesale. The last reported phase is kept so
// the next Evaluate announces where the rescheduled event now stands.
func (t *Tracker) Track(eventID string, w Window) {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.entries[eventID]
	if ok && existing.window == w {
		return
	}
	entry := &trackedWindow{window: w}
	if ok && existing.evaluated {
		entry.phase = existing.phase
		entry.evaluated = true
		entry.rescheduled = true
	}
	t.entries[eventID] = entry
}

// Untrack stops tracking an event.
func (t *Tracker) Untrack(eventID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, eventID)
}

// Retain untracks every event whose id is not in keep.
func (t *Tracker) Retain(keep map[string]bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.entries {
		if !keep[id] {
			delete(t.entries, id)
		}
	}
}

// Len returns the number of tracked events.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Phase resolves the phase of a tracked event at now without recording it.
func (t *Tracker) Phase(eventID string, now time.Time) (Phase, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[eventID]
	if !ok {
		return PhaseUpcoming, false
	}
	return t.resolveLocked(entry, now), true
}

// Evaluate resolves every tracked event at now and returns the transitions
// since the previous evaluation, ordered by event id. The first evaluation of
// a window records its phase without reporting a change.
func (t *Tracker) Evaluate(now time.Time) []PhaseChange {
	t.mu.Lock()
	defer t.mu.Unlock()

	var changes []PhaseChange
	for id, entry := range t.entries {
		phase := t.resolveLocked(entry, now)
		if entry.evaluated && phase != entry.phase {
			changes = append(changes, PhaseChange{
				EventID:  id,
				Previous: entry.phase,
				Current:  phase,
				At:       now,
			})
		}
		entry.phase = phase
		entry.evaluated = true
		entry.rescheduled = false
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].EventID < changes[j].EventID
	})
	return changes
}

// resolveLocked never lets an unchanged window move backwards, even if the
// wall clock does.
func (t *Tracker) resolveLocked(entry *trackedWindow, now time.Time) Phase {
	phase := ResolveIn(entry.window, now, t.location)
	if entry.evaluated && !entry.rescheduled && phase < entry.phase {
		return entry.phase
	}
	return phase
}
