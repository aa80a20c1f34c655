// Package testing provides standardised tests for database implementations
// that satisfy the db.KVDB interface.
//
// The suite covers point operations, ordered prefix scans (including writes from
// inside a scan callback), atomic batches, reopening a database from the same
// directory, behaviour after Close, metadata and concurrent use.
//
// This package is particularly useful for:
//   - Database developers implementing the KVDB interface
//   - Making sure every engine behaves identically underneath the persistence engine
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(t testing.TB, dir string) db.KVDB {
//		kv, err := NewMyDatabase(dir)
//		if err != nil {
//			t.Fatal(err)
//		}
//		return kv
//	}
//
//	// Running the standard test suite
//	dbtesting.RunKVDBTests(t, "MyDatabase", factory)
package testing
