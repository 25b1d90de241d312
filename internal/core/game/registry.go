package game

import (
	"errors"
	"fmt"
)

// Registry errors
var (
	ErrRegistryFull    = errors.New("entity registry is full")
	ErrBadCapacity     = errors.New("registry capacity out of range")
	ErrAlreadyAssigned = errors.New("entity already holds an identifier")
)

// MaxCapacity bounds the registry table. The addition list carries ids in
// 11 bits and reserves the all-ones value as its end sentinel, so no valid
// id may reach 2047.
const MaxCapacity = 2048

// Registry is the capacity-bounded sparse table assigning each connected
// entity a stable small identifier. Identifiers are unique while held and
// reused round-robin after release. All access happens on the tick
// goroutine.
type Registry struct {
	slots  []*Entity
	count  int
	cursor EntityID // next allocation hint
}

// NewRegistry creates an empty table. Capacity covers slots [0, capacity);
// usable ids are [1, capacity-1] minus the wire sentinel.
func NewRegistry(capacity int) (*Registry, error) {
	if capacity < 2 || capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: %d", ErrBadCapacity, capacity)
	}
	return &Registry{
		slots:  make([]*Entity, capacity),
		cursor: 1,
	}, nil
}

// Capacity returns the table size.
func (r *Registry) Capacity() int { return len(r.slots) }

// Count returns the number of registered entities.
func (r *Registry) Count() int { return r.count }

// Register allocates the next free id starting at the round-robin hint,
// scanning forward and wrapping until a free slot is found or every slot
// has been examined once. The caller must surface ErrRegistryFull as a
// capacity rejection, never drop it.
func (r *Registry) Register(e *Entity) (EntityID, error) {
	if e.ID != NilID {
		return NilID, ErrAlreadyAssigned
	}
	id := r.cursor
	for i := 0; i < len(r.slots); i++ {
		if id == NilID || int(id) >= len(r.slots) {
			id = 1
		}
		if id != SentinelID && r.slots[id] == nil {
			r.slots[id] = e
			e.ID = id
			r.count++
			r.cursor = id + 1
			return id, nil
		}
		id++
	}
	return NilID, ErrRegistryFull
}

// Deregister frees the slot. No-op for the null id, out-of-range ids and
// already-free slots.
func (r *Registry) Deregister(id EntityID) {
	if id == NilID || int(id) >= len(r.slots) || r.slots[id] == nil {
		return
	}
	r.slots[id].ID = NilID
	r.slots[id] = nil
	r.count--
}

// Get resolves an id to its entity, or nil for the null id, out-of-range
// ids and free slots.
func (r *Registry) Get(id EntityID) *Entity {
	if id == NilID || int(id) >= len(r.slots) {
		return nil
	}
	return r.slots[id]
}

// ForEach visits every registered entity in ascending id order.
func (r *Registry) ForEach(fn func(*Entity)) {
	for _, e := range r.slots {
		if e != nil {
			fn(e)
		}
	}
}
