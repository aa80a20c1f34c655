// Package persist keeps the components of an entity/component runtime durably in
// sync with a key-value store.
//
// A Persister connects four parts:
//   - a codec.Registry that knows how to encode and decode every persisted type
//   - an identity.Map that pairs runtime entity handles with stable ids
//   - a store.IStore holding one record per (component type, stable id)
//   - the host runtime (ecs.Host), which owns the live entities and values
//
// Lifecycle:
//
//	p, err := persist.Open(persist.DefaultConfig(), registry)
//	if err != nil {
//		// the store could not be opened, startup must abort
//	}
//	defer p.Close()
//
//	p.Install(world) // Hydrate at startup, Sync on every update
//
// Hydrate runs once and loads every stored record into the host, spawning one
// entity per stable id. Sync runs once per update cycle: values whose version or
// encoded bytes changed are upserted, records of despawned entities, of entities
// that were marked ignored and of removed components are deleted. Each cycle is
// committed as one atomic batch. A failed batch is retried in the next cycle.
//
// Ignored entities are never written. Marking a persisted entity as ignored
// deletes its records and releases its stable id, removing the marker persists
// it again under a new id.
//
// With PolicyAsync the batch is committed by a background goroutine and Sync
// returns immediately. The outcome is applied at the start of the next Sync,
// Flush waits for all queued batches.
//
// Records are stored as
//
//	c/<tag>\x00<stable id>   encoded component value
//	m/<tag>                  format and schema version of the records of tag
//
// Only one process may use a store at a time.
package persist
