// Package db provides a standardized interface for ordered key-value database implementations.
// It defines a KVDB interface that allows for consistent interaction with various storage
// engines while abstracting implementation details.
//
// The package focuses on:
//   - A unified interface for key-value operations
//   - Ordered prefix scans, which the persistence engine uses to load all records of one
//     component type
//   - Atomic batches, which the persistence engine uses to commit one update cycle
//   - Feature discovery through capability flags
//   - Comprehensive metadata reporting
//
// Key Components:
//
//   - KVDB Interface: The core interface that all database implementations must satisfy.
//     It provides methods for basic operations (Set, Get, Delete), ordered prefix scans
//     (Scan), atomic batches (Apply), metadata retrieval (GetInfo) and Close.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method. This allows clients to
//     discover supported operations at runtime, e.g. whether writes are durable.
//
//   - Snapshotter: Optional interface for engines that can dump and restore their full
//     state (FeatureSave, FeatureLoad).
//
//   - Implementation Identifiers: The Implementation type provides string constants
//     for the different database backends ("maple", "pebble", "sqlite").
//
//   - Database Information: The DatabaseInfo structure provides standardized
//     reporting on database state, including size statistics, implementation type,
//     and implementation-specific metadata. Note: For most implementations the
//     size statistics are estimates since a precise calculation can be expensive.
//
// Note on Ownership:
//   - Values handed to Set and Apply may be reused by the caller after the call returns.
//   - Values returned by Get and passed to Scan callbacks are owned by the caller.
//
// Note on Concurrency:
//   - All implementations are safe for concurrent use. A single process is expected to
//     own a database directory; only the pebble engine enforces this with a lock file.
//
// Related Packages:
//
// The engines/maple package (github.com/ValentinKolb/eKV/lib/db/engines/maple) provides a
// sharded in-memory implementation that can be made durable with a snapshot file written
// on Close and read on open.
//
// The engines/pebble package (github.com/ValentinKolb/eKV/lib/db/engines/pebble) provides a
// durable LSM implementation based on cockroachdb/pebble. It is the default engine.
//
// The engines/sqlite package (github.com/ValentinKolb/eKV/lib/db/engines/sqlite) stores all
// entries in a single SQLite table in WAL mode.
//
// The testing package (github.com/ValentinKolb/eKV/lib/db/testing) provides
// standardized tests for database implementations that satisfy the db.KVDB interface.
//   - RunKVDBTests: Runs a standardized test suite to validate implementations
package db
