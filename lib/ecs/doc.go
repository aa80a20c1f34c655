// Package ecs defines the contract between the persistence engine and an
// entity/component runtime, and ships a small reference runtime implementing it.
//
// Key Components:
//
//   - Entity: the runtime handle (index + generation). Handles are process-local
//     and are never persisted.
//
//   - ComponentTag: the stable namespace of a component type. TagOf derives the
//     default tag from the Go type.
//
//   - Host: what the persistence engine needs from a runtime: iterating
//     components by tag, spawning, inserting, liveness and the exclusion marker.
//
//   - World: a map based, single-threaded runtime with startup and update
//     system scheduling. Every insert bumps a per-component version which
//     hosts expose to the engine for cheap change detection.
//
// Usage Example:
//
//	w := ecs.NewWorld()
//	e := w.Spawn()
//	ecs.Insert(w, e, Position{X: 1})
//	w.AddSystem(func(w *ecs.World) error { ...; return nil })
//	_ = w.Update()
package ecs
