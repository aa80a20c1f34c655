// Package maple implements an in-memory key-value database (KVDB) with optional
// snapshot file durability. It provides a complete implementation of the db.KVDB
// interface with a focus on thread safety and simplicity.
//
// The package focuses on:
//   - Concurrent access through sharding on xsync.MapOf
//   - Atomic batches through a database wide read/write lock
//   - Ordered prefix scans on top of unordered shards
//   - Persistent storage through a binary snapshot file
//
// Key Components:
//
//   - mapleImpl: The central database structure implementing db.KVDB. It manages the
//     shards, the batch lock and the snapshot file.
//
//   - Shards: Each shard is an xsync.MapOf holding a subset of the key space. Keys are
//     distributed by hashing the key with FNV-1a and a database specific seed and
//     shifting the hash right by 7 bits to use higher-quality bits for distribution.
//
// Internal Mechanisms:
//
//   - Batches: Apply holds the write lock for the whole batch, Get and the key collection
//     phase of Scan hold the read lock. Readers therefore never observe half a batch.
//
//   - Scans: Shards are unordered. Scan collects the matching keys of all shards, sorts
//     them and then loads the values lazily, one Get per key, without holding the lock
//     while the callback runs. Entries deleted in between are skipped.
//
//   - Snapshots: Save writes a magic number, a format version, the entry count and then
//     length prefixed keys and values in key order. Load reads into fresh shards and only
//     swaps them in when the whole file was read. With DBOptions.SnapshotPath set the
//     snapshot is loaded in NewMapleDB and written atomically (temp file + rename) on Close.
//
// Durability:
//
//	Acknowledged writes are only in memory until Close. A crash loses everything written
//	since the last snapshot, so the engine does not advertise db.FeatureDurable. Use the
//	pebble engine when every cycle must survive a crash.
//
// Usage Example:
//
//	kv, err := maple.NewMapleDB(&maple.DBOptions{SnapshotPath: "./database/maple.snap"})
//	if err != nil { ... }
//	defer kv.Close()
//	_ = kv.Set("c/pos\x00id", []byte{...})
package maple
