package ecs

import (
	"fmt"
	"sort"
)

// slot holds one component value together with its change version.
type slot struct {
	value   any
	version uint64
}

// World is a small single-threaded entity/component runtime. It implements Host
// and schedules startup and update systems.
//
// Thread-safety: World is not thread-safe. All systems run on the goroutine
// that calls Startup and Update.
type World struct {
	generations []uint32 // current generation per entity index
	alive       []bool
	free        []uint32 // recycled indices

	components map[ComponentTag]map[uint32]slot
	ignored    map[uint32]struct{}
	version    uint64 // global change counter, 0 is never handed out

	startupSystems []System
	updateSystems  []System
	started        bool
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{
		components: make(map[ComponentTag]map[uint32]slot),
		ignored:    make(map[uint32]struct{}),
	}
}

// --------------------------------------------------------------------------
// Entity lifecycle
// --------------------------------------------------------------------------

// Spawn creates a new empty entity, reusing a free index if possible.
func (w *World) Spawn() Entity {
	if n := len(w.free); n > 0 {
		idx := w.free[n-1]
		w.free = w.free[:n-1]
		w.alive[idx] = true
		return Entity{Index: idx, Generation: w.generations[idx]}
	}
	idx := uint32(len(w.alive))
	w.alive = append(w.alive, true)
	w.generations = append(w.generations, 0)
	return Entity{Index: idx, Generation: 0}
}

// Despawn removes the entity and all of its components. Returns false if the
// handle was already stale.
func (w *World) Despawn(e Entity) bool {
	if !w.Alive(e) {
		return false
	}
	for _, byEntity := range w.components {
		delete(byEntity, e.Index)
	}
	delete(w.ignored, e.Index)
	w.alive[e.Index] = false
	w.generations[e.Index]++
	w.free = append(w.free, e.Index)
	return true
}

// Alive reports whether the handle refers to a live entity.
func (w *World) Alive(e Entity) bool {
	return int(e.Index) < len(w.alive) && w.alive[e.Index] && w.generations[e.Index] == e.Generation
}

// Len returns the number of live entities.
func (w *World) Len() int {
	return len(w.alive) - len(w.free)
}

// --------------------------------------------------------------------------
// Components
// --------------------------------------------------------------------------

// Insert attaches or overwrites a component and bumps its version.
// Inserting into a stale handle is a no-op and returns version 0.
func (w *World) Insert(e Entity, tag ComponentTag, value any) uint64 {
	if !w.Alive(e) {
		return 0
	}
	byEntity, ok := w.components[tag]
	if !ok {
		byEntity = make(map[uint32]slot)
		w.components[tag] = byEntity
	}
	w.version++
	byEntity[e.Index] = slot{value: value, version: w.version}
	return w.version
}

// Get returns the component value stored under tag.
func (w *World) Get(e Entity, tag ComponentTag) (any, bool) {
	if !w.Alive(e) {
		return nil, false
	}
	s, ok := w.components[tag][e.Index]
	return s.value, ok
}

// Version returns the change version of a component, 0 if absent.
func (w *World) Version(e Entity, tag ComponentTag) uint64 {
	if !w.Alive(e) {
		return 0
	}
	return w.components[tag][e.Index].version
}

// Remove detaches a component. Returns false if the entity did not carry it.
func (w *World) Remove(e Entity, tag ComponentTag) bool {
	if !w.Alive(e) {
		return false
	}
	byEntity := w.components[tag]
	if _, ok := byEntity[e.Index]; !ok {
		return false
	}
	delete(byEntity, e.Index)
	return true
}

// Each iterates all live entities carrying tag in ascending index order.
func (w *World) Each(tag ComponentTag, fn func(e Entity, value any, version uint64) bool) {
	byEntity := w.components[tag]
	if len(byEntity) == 0 {
		return
	}

	// snapshot the indices so fn may mutate the world
	indices := make([]uint32, 0, len(byEntity))
	for idx := range byEntity {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	for _, idx := range indices {
		s, ok := byEntity[idx]
		if !ok || !w.alive[idx] {
			continue
		}
		if !fn(Entity{Index: idx, Generation: w.generations[idx]}, s.value, s.version) {
			return
		}
	}
}

// --------------------------------------------------------------------------
// Exclusion marker
// --------------------------------------------------------------------------

// Ignore tags the entity so that it is excluded from persistence.
func (w *World) Ignore(e Entity) {
	if w.Alive(e) {
		w.ignored[e.Index] = struct{}{}
	}
}

// Unignore removes the exclusion marker.
func (w *World) Unignore(e Entity) {
	if w.Alive(e) {
		delete(w.ignored, e.Index)
	}
}

// Ignored reports whether the entity carries the exclusion marker.
func (w *World) Ignored(e Entity) bool {
	if !w.Alive(e) {
		return false
	}
	_, ok := w.ignored[e.Index]
	return ok
}

// --------------------------------------------------------------------------
// Scheduling
// --------------------------------------------------------------------------

// AddStartupSystem schedules s to run once in Startup, in insertion order.
func (w *World) AddStartupSystem(s System) {
	w.startupSystems = append(w.startupSystems, s)
}

// AddSystem schedules s to run on every Update, in insertion order.
func (w *World) AddSystem(s System) {
	w.updateSystems = append(w.updateSystems, s)
}

// Startup runs all startup systems. The first failing system aborts startup.
func (w *World) Startup() error {
	if w.started {
		return fmt.Errorf("world already started")
	}
	w.started = true
	for _, s := range w.startupSystems {
		if err := s(w); err != nil {
			return err
		}
	}
	return nil
}

// Update runs one cycle of all update systems. Startup runs first if it has not yet.
func (w *World) Update() error {
	if !w.started {
		if err := w.Startup(); err != nil {
			return err
		}
	}
	for _, s := range w.updateSystems {
		if err := s(w); err != nil {
			return err
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Typed helpers
// --------------------------------------------------------------------------

// Insert attaches value under the default tag of T.
func Insert[T any](w *World, e Entity, value T) uint64 {
	return w.Insert(e, TagOf[T](), value)
}

// Get returns the component of type T stored under its default tag.
func Get[T any](w *World, e Entity) (T, bool) {
	var zero T
	v, ok := w.Get(e, TagOf[T]())
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Remove detaches the component of type T stored under its default tag.
func Remove[T any](w *World, e Entity) bool {
	return w.Remove(e, TagOf[T]())
}
