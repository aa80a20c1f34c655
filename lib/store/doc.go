// Package store provides the store client used by the persistence engine: a narrow
// interface for key-value storage operations with unified error handling.
// It serves as an abstraction layer over the lower-level db.KVDB implementations.
//
// Key Components:
//
//   - IStore Interface: Point reads and writes, ordered prefix scans and atomic
//     batches. All implementations share this common interface, so the persistence
//     engine never depends on a concrete storage engine.
//
//   - Error System: A structured error reporting mechanism using typed error codes
//     (RetCode) and descriptive messages. Engine failures are reported as
//     RetCStorageError and keep the original error reachable through errors.Unwrap.
//
//   - DBFactory: A function type that abstracts the creation of underlying db.KVDB
//     instances.
//
// Implementations:
//
//   - Local Store (lstore): directly utilizes a db.KVDB instance.
//     Available in the "github.com/ValentinKolb/eKV/lib/store/lstore" package.
package store
