// Package sqlite implements the db.KVDB interface on a single SQLite table using
// github.com/mattn/go-sqlite3.
//
// Keys are stored as BLOBs so that SQLite's memcmp ordering matches the bytewise
// order of the other engines. A prefix scan becomes a range query on the primary
// key, read in pages of a few hundred rows. Batches run in one transaction.
package sqlite
