package testing

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/eKV/lib/db"
)

// DBFactory opens a KVDB implementation stored in dir. Opening the same dir twice
// (after Close) must yield the previously written state.
type DBFactory func(t testing.TB, dir string) db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		open := func(t *testing.T) db.KVDB {
			return factory(t, t.TempDir())
		}

		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, open(t))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, open(t))
		})

		t.Run("Scan", func(t *testing.T) {
			testScan(t, open(t))
		})

		t.Run("ScanEarlyStop", func(t *testing.T) {
			testScanEarlyStop(t, open(t))
		})

		t.Run("ScanWithWrites", func(t *testing.T) {
			testScanWithWrites(t, open(t))
		})

		t.Run("Batch", func(t *testing.T) {
			testBatch(t, open(t))
		})

		t.Run("Reopen", func(t *testing.T) {
			testReopen(t, factory)
		})

		t.Run("Closed", func(t *testing.T) {
			testClosed(t, open(t))
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, open(t))
		})

		t.Run("Concurrent", func(t *testing.T) {
			testConcurrent(t, open(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

type kv struct {
	key   string
	value string
}

func collect(t *testing.T, database db.KVDB, prefix string) []kv {
	t.Helper()
	var out []kv
	err := database.Scan(prefix, func(key string, value []byte) bool {
		out = append(out, kv{key, string(value)})
		return true
	})
	if err != nil {
		t.Fatalf("Scan(%q) failed: %v", prefix, err)
	}
	return out
}

func mustSet(t *testing.T, database db.KVDB, key, value string) {
	t.Helper()
	if err := database.Set(key, []byte(value)); err != nil {
		t.Fatalf("Set(%q) failed: %v", key, err)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	if err := database.Set(testKey, testValue1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, exists, err := database.Get(testKey)
	if err != nil || !exists {
		t.Fatalf("Expected key %s to exist after Set (err=%v)", testKey, err)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	// the caller may reuse its buffer after Set
	testValue2Copy := append([]byte(nil), testValue2...)
	if err := database.Set(testKey, testValue2Copy); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	testValue2Copy[0] = 'X'

	result, _, _ = database.Get(testKey)
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	// Get returns a copy
	result[0] = 'Y'
	again, _, _ := database.Get(testKey)
	if !bytes.Equal(again, testValue2) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	if _, exists, _ := database.Get("nonexistent-key"); exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	// empty values are values
	mustSet(t, database, "empty", "")
	if v, exists, _ := database.Get("empty"); !exists || len(v) != 0 {
		t.Errorf("Expected empty value to exist, got exists=%v value=%q", exists, v)
	}

	// binary keys
	binKey := "c/tag\x00\xff\x01"
	mustSet(t, database, binKey, "bin")
	if v, exists, _ := database.Get(binKey); !exists || string(v) != "bin" {
		t.Errorf("Expected binary key to round trip, got exists=%v value=%q", exists, v)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	mustSet(t, database, "delete-key", "value")
	if err := database.Delete("delete-key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, exists, _ := database.Get("delete-key"); exists {
		t.Errorf("Expected key to be gone after Delete")
	}

	if err := database.Delete("never-existed"); err != nil {
		t.Errorf("Deleting a missing key should not fail: %v", err)
	}

	mustSet(t, database, "delete-key", "again")
	if v, exists, _ := database.Get("delete-key"); !exists || string(v) != "again" {
		t.Errorf("Expected key to be writable after Delete")
	}
}

func testScan(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureScan)

	keys := []string{
		"c/pos\x00b",
		"c/pos\x00a",
		"c/pos\x00c",
		"c/posx\x00a", // shares the textual prefix but belongs to another tag
		"c/po",
		"m/pos",
		"c/pos\xff",
	}
	for _, k := range keys {
		mustSet(t, database, k, "v:"+k)
	}

	got := collect(t, database, "c/pos\x00")
	want := []kv{
		{"c/pos\x00a", "v:c/pos\x00a"},
		{"c/pos\x00b", "v:c/pos\x00b"},
		{"c/pos\x00c", "v:c/pos\x00c"},
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Scan returned %q, want %q", got, want)
	}

	if n := len(collect(t, database, "c/")); n != 6 {
		t.Errorf("Expected 6 entries under c/, got %d", n)
	}
	if n := len(collect(t, database, "")); n != len(keys) {
		t.Errorf("Expected %d entries for the empty prefix, got %d", len(keys), n)
	}
	if n := len(collect(t, database, "zzz")); n != 0 {
		t.Errorf("Expected no entries for an unused prefix, got %d", n)
	}

	// keys are returned in ascending order
	all := collect(t, database, "")
	for i := 1; i < len(all); i++ {
		if all[i-1].key >= all[i].key {
			t.Errorf("Scan out of order: %q before %q", all[i-1].key, all[i].key)
		}
	}
}

func testScanEarlyStop(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureScan)

	for i := 0; i < 10; i++ {
		mustSet(t, database, fmt.Sprintf("k%02d", i), "v")
	}

	count := 0
	err := database.Scan("k", func(string, []byte) bool {
		count++
		return count < 3
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected scan to stop after 3 entries, got %d", count)
	}
}

func testScanWithWrites(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureDelete|db.FeatureScan)

	for i := 0; i < 600; i++ {
		mustSet(t, database, fmt.Sprintf("p/%04d", i), "v")
	}

	// deleting every visited entry must neither deadlock nor fail
	err := database.Scan("p/", func(key string, _ []byte) bool {
		if err := database.Delete(key); err != nil {
			t.Errorf("Delete inside Scan failed: %v", err)
			return false
		}
		return true
	})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if n := len(collect(t, database, "p/")); n != 0 {
		t.Errorf("Expected all entries to be deleted, %d left", n)
	}
}

func testBatch(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureBatch|db.FeatureGet)

	mustSet(t, database, "b/old", "old")

	err := database.Apply([]db.Op{
		db.Put("b/1", []byte("one")),
		db.Put("b/2", []byte("two")),
		db.Del("b/old"),
		db.Put("b/2", []byte("two-again")), // later op wins
		db.Put("b/3", []byte("three")),
		db.Del("b/3"),
		db.Del("b/missing"),
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	expect := map[string]string{"b/1": "one", "b/2": "two-again"}
	for k, want := range expect {
		if v, ok, _ := database.Get(k); !ok || string(v) != want {
			t.Errorf("Get(%q) = %q, %v, want %q", k, v, ok, want)
		}
	}
	for _, k := range []string{"b/old", "b/3"} {
		if _, ok, _ := database.Get(k); ok {
			t.Errorf("Expected %q to be deleted by the batch", k)
		}
	}

	if err := database.Apply(nil); err != nil {
		t.Errorf("Empty batch should succeed: %v", err)
	}

	// a batch with an invalid op is rejected as a whole
	err = database.Apply([]db.Op{db.Put("b/4", []byte("four")), {Type: 99, Key: "b/5"}})
	if err == nil {
		t.Errorf("Expected batch with an unknown op type to fail")
	}
	if _, ok, _ := database.Get("b/4"); ok {
		t.Errorf("Failed batch must not be partially applied")
	}
}

func testReopen(t *testing.T, factory DBFactory) {
	dir := t.TempDir()

	first := factory(t, dir)
	mustSet(t, first, "r/keep", "kept")
	mustSet(t, first, "r/drop", "dropped")
	if err := first.Apply([]db.Op{db.Del("r/drop"), db.Put("r/batch", []byte("b"))}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second := factory(t, dir)
	defer second.Close()

	got := collect(t, second, "r/")
	want := []kv{{"r/batch", "b"}, {"r/keep", "kept"}}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("After reopen got %q, want %q", got, want)
	}
}

func testClosed(t *testing.T, database db.KVDB) {
	mustSet(t, database, "x", "y")
	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Errorf("Closing twice should be a no-op: %v", err)
	}

	if err := database.Set("x", []byte("z")); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Set after Close: expected ErrClosed, got %v", err)
	}
	if _, _, err := database.Get("x"); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Get after Close: expected ErrClosed, got %v", err)
	}
	if err := database.Scan("", func(string, []byte) bool { return true }); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Scan after Close: expected ErrClosed, got %v", err)
	}
	if err := database.Apply([]db.Op{db.Del("x")}); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Apply after Close: expected ErrClosed, got %v", err)
	}
}

func testInfo(t *testing.T, database db.KVDB) {
	defer database.Close()

	for i := 0; i < 25; i++ {
		mustSet(t, database, fmt.Sprintf("info/%d", i), "0123456789")
	}

	info := database.GetInfo()
	if info.DbType == "" {
		t.Errorf("Expected an implementation identifier")
	}
	if info.Keys != 25 {
		t.Errorf("Expected 25 keys, got %d", info.Keys)
	}
	if len(info.SupportedFeatures) == 0 {
		t.Errorf("Expected supported features to be listed")
	}
	for _, f := range info.SupportedFeatures {
		if !database.SupportsFeature(f) {
			t.Errorf("Feature %s listed but not supported", f)
		}
	}
}

func testConcurrent(t *testing.T, database db.KVDB) {
	defer database.Close()

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("cc/%d/%03d", w, i)
				if err := database.Set(key, []byte(key)); err != nil {
					t.Errorf("Set failed: %v", err)
					return
				}
				if v, ok, err := database.Get(key); err != nil || !ok || string(v) != key {
					t.Errorf("Get(%q) = %q, %v, %v", key, v, ok, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	if n := len(collect(t, database, "cc/")); n != workers*perWorker {
		t.Errorf("Expected %d entries, got %d", workers*perWorker, n)
	}
}
