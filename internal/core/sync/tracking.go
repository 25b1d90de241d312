package sync

import "github.com/emberlock/emberlock/internal/core/game"

// MaxTracked caps a viewer's tracking set; the wire count field is 8 bits.
const MaxTracked = 255

// TrackingSet records which identifiers one viewer was aware of as of the
// previous tick: an ordered list of tracked ids plus a bitmap for O(1)
// membership. Only the owning viewer's encode pass mutates it.
type TrackingSet struct {
	ids     []game.EntityID
	tracked []bool
}

// NewTrackingSet creates an empty set sized for a registry of the given
// capacity.
func NewTrackingSet(capacity int) *TrackingSet {
	return &TrackingSet{
		ids:     make([]game.EntityID, 0, MaxTracked),
		tracked: make([]bool, capacity),
	}
}

// Len returns the number of tracked ids.
func (t *TrackingSet) Len() int { return len(t.ids) }

// Contains reports whether the id is currently tracked.
func (t *TrackingSet) Contains(id game.EntityID) bool {
	return int(id) < len(t.tracked) && t.tracked[id]
}

// Add appends a newly admitted id. Reports false once the set is at
// capacity; the caller stops admitting for this tick.
func (t *TrackingSet) Add(id game.EntityID) bool {
	if len(t.ids) >= MaxTracked {
		return false
	}
	t.ids = append(t.ids, id)
	t.tracked[id] = true
	return true
}

// Compact retains, in order, every id for which keep returns true and
// drops the rest, clearing their bitmap bits. keep runs exactly once per
// id in tracking order, so the caller can emit per-entity wire state from
// inside it.
func (t *TrackingSet) Compact(keep func(id game.EntityID) bool) {
	w := 0
	for _, id := range t.ids {
		if keep(id) {
			t.ids[w] = id
			w++
		} else {
			t.tracked[id] = false
		}
	}
	t.ids = t.ids[:w]
}

// Reset empties the set. Called whenever the owning slot is reassigned so
// no visibility state leaks across sessions.
func (t *TrackingSet) Reset() {
	for _, id := range t.ids {
		t.tracked[id] = false
	}
	t.ids = t.ids[:0]
}
