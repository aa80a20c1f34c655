package ecs

// Host is the part of an entity/component runtime the persistence engine
// consumes. Components are addressed by tag and handed over as opaque values,
// the engine never inspects them itself.
//
// Every component value carries a version that the host bumps whenever the
// value is (re)inserted. Hosts without native change tracking may return 0,
// the engine then falls back to comparing fingerprints of the encoded values.
// Values are stored by value, a pointer mutated in place is never seen as changed.
type Host interface {
	// Each calls fn for every live entity carrying a component with the given tag.
	// Iteration stops when fn returns false. The order must be deterministic.
	Each(tag ComponentTag, fn func(e Entity, value any, version uint64) bool)

	// Spawn creates a new empty entity.
	Spawn() Entity

	// Insert attaches (or overwrites) the component with the given tag and returns
	// the new version of the component.
	Insert(e Entity, tag ComponentTag, value any) (version uint64)

	// Alive reports whether the handle still refers to a live entity.
	Alive(e Entity) bool

	// Ignored reports whether the entity carries the exclusion marker.
	Ignored(e Entity) bool
}

// System is a step scheduled by the World, either once at startup or on every update.
type System func(w *World) error
