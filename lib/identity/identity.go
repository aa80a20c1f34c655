package identity

import (
	"fmt"

	"github.com/ValentinKolb/eKV/lib/ecs"
	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Stable IDs
// --------------------------------------------------------------------------

// StableID is the durable, process independent identity of a persisted entity.
type StableID uuid.UUID

// Nil is the zero StableID. It is never allocated.
var Nil StableID

// NewStableID allocates a fresh id. UUIDv7 ids are time ordered, so records of
// older entities sort first in prefix scans.
func NewStableID() StableID {
	id, err := uuid.NewV7()
	if err != nil {
		// the v7 generator only fails if the random source fails
		return StableID(uuid.New())
	}
	return StableID(id)
}

// ParseStableID parses the canonical string form produced by String.
func ParseStableID(s string) (StableID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("invalid stable id %q: %w", s, err)
	}
	if id == uuid.Nil {
		return Nil, fmt.Errorf("invalid stable id %q: nil id", s)
	}
	return StableID(id), nil
}

func (id StableID) String() string {
	return uuid.UUID(id).String()
}

// --------------------------------------------------------------------------
// Identity Map
// --------------------------------------------------------------------------

// Map is the bidirectional association between stable ids and runtime handles.
// Each stable id is bound to at most one live handle and vice versa.
//
// The map is not persisted itself. It is rebuilt at hydration time from the
// stable ids found in the store, bound to freshly spawned handles.
//
// Thread-safety: Map is not thread-safe. It is owned by the persistence engine
// and only touched from the host's update loop.
type Map struct {
	byHandle map[ecs.Entity]StableID
	byID     map[StableID]ecs.Entity
	newID    func() StableID
}

// NewMap creates an empty map that allocates UUIDv7 ids.
func NewMap() *Map {
	return NewMapWithGenerator(NewStableID)
}

// NewMapWithGenerator creates an empty map using gen to allocate ids.
func NewMapWithGenerator(gen func() StableID) *Map {
	return &Map{
		byHandle: make(map[ecs.Entity]StableID),
		byID:     make(map[StableID]ecs.Entity),
		newID:    gen,
	}
}

// Bind returns the stable id of h, allocating a fresh one if h is unbound.
// created reports whether a new id was allocated.
//
// Allocating an id that is already bound is an invariant violation and panics.
func (m *Map) Bind(h ecs.Entity) (id StableID, created bool) {
	if id, ok := m.byHandle[h]; ok {
		return id, false
	}
	id = m.newID()
	if id == Nil {
		panic("identity: generator returned the nil stable id")
	}
	if other, ok := m.byID[id]; ok {
		panic(fmt.Sprintf("identity: stable id %s collides with entity %s", id, other))
	}
	m.byHandle[h] = id
	m.byID[id] = h
	return id, true
}

// BindTo associates a known stable id (read from the store) with h.
// Binding the same pair twice is a no-op.
func (m *Map) BindTo(id StableID, h ecs.Entity) error {
	if id == Nil {
		return fmt.Errorf("cannot bind the nil stable id")
	}
	if bound, ok := m.byID[id]; ok {
		if bound == h {
			return nil
		}
		return fmt.Errorf("stable id %s is already bound to entity %s", id, bound)
	}
	if bound, ok := m.byHandle[h]; ok {
		return fmt.Errorf("entity %s is already bound to stable id %s", h, bound)
	}
	m.byHandle[h] = id
	m.byID[id] = h
	return nil
}

// Resolve returns the handle bound to id.
func (m *Map) Resolve(id StableID) (ecs.Entity, bool) {
	h, ok := m.byID[id]
	return h, ok
}

// Lookup returns the stable id bound to h without allocating.
func (m *Map) Lookup(h ecs.Entity) (StableID, bool) {
	id, ok := m.byHandle[h]
	return id, ok
}

// Unbind removes the association of h and returns the id it had.
func (m *Map) Unbind(h ecs.Entity) (StableID, bool) {
	id, ok := m.byHandle[h]
	if !ok {
		return Nil, false
	}
	delete(m.byHandle, h)
	delete(m.byID, id)
	return id, true
}

// Len returns the number of bound pairs.
func (m *Map) Len() int { return len(m.byID) }

// Range calls fn for every bound pair until fn returns false. Order is unspecified.
func (m *Map) Range(fn func(id StableID, h ecs.Entity) bool) {
	for id, h := range m.byID {
		if !fn(id, h) {
			return
		}
	}
}
