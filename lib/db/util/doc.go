// Package util provides small helpers shared by the database implementations
// that satisfy the db.KVDB interface.
//
// The package contains:
//   - functions: seed generation, FNV-1a string hashing, byte copying and
//     prefix range computation (PrefixEnd) for ordered scans
//   - statistics: descriptive statistics used to report shard distribution
//     in DatabaseInfo metadata
package util
