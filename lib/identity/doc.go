// Package identity maps stable, durable entity ids to the runtime handles of
// the current process.
//
// Stable ids are UUIDv7 values. They are allocated once when an entity is first
// persisted and are never reused, even after the entity is gone. Runtime
// handles are never persisted; instead the map is rebuilt on every start by
// binding the ids found in the store to freshly spawned handles.
//
// The map is an explicitly owned value. The persistence engine receives it by
// pointer, which keeps it testable without any host runtime.
package identity
