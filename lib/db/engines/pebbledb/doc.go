// Package pebbledb implements the db.KVDB interface on top of pebble, the LSM tree
// storage engine of CockroachDB.
//
// This is the default engine of the persistence layer: keys are stored in byte
// order, so a component partition maps to a contiguous key range and Scan is a
// bounded range iteration. Batches are committed atomically, and with SyncWrites
// every commit syncs the write-ahead log before returning.
//
// Scan reads the range in pages with short-lived iterators. No iterator or lock is
// held while the callback runs, which lets the callback write to the database.
//
// Pebble's own log output is routed to the "db" logger.
package pebbledb
