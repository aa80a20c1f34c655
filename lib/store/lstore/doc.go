// Package lstore implements a local, single-node key-value store based on the
// store.IStore interface. It provides a thin wrapper around any db.KVDB
// implementation.
//
// Key Features:
//   - Direct integration with db.KVDB implementations (maple, pebble, sqlite)
//   - Feature detection to handle unsupported operations gracefully
//   - Engine errors converted to *store.Error with RetCStorageError (or RetCClosed)
//   - A write index counting committed write operations
//
// Implementation Details:
//
//   - Write Index: The store maintains an atomic counter that is incremented once
//     for every successfully committed Put, Delete or non-empty Batch. Failed
//     writes do not advance it, which makes it a cheap commit counter for callers
//     and tests.
//
//   - Feature Detection: Before executing operations, the store checks if the underlying
//     db.KVDB implementation supports the requested feature through the SupportsFeature
//     method. Unsupported operations return RetCUnsupportedOperation rather than failing
//     silently or producing undefined behavior.
//
// Thread Safety:
//
//	All operations in the local store are thread-safe as long as the underlying
//	db.KVDB implementation is.
//
// Usage Example:
//
//	factory := func() (db.KVDB, error) {
//		return pebbledb.NewPebbleDB(pebbledb.DefaultOptions("./database"))
//	}
//	s, err := lstore.NewLocalStore(factory)
//
//	err = s.Batch([]db.Op{db.Put("a", []byte("1")), db.Del("b")})
//	value, exists, err := s.Get("a")
package lstore
