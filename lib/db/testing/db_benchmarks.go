package testing

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/eKV/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {
	open := func(b *testing.B) db.KVDB {
		return factory(b, b.TempDir())
	}

	b.Run("Set", func(b *testing.B) {
		benchmarkSet(b, open(b))
	})

	b.Run("SetLargeValue", func(b *testing.B) {
		benchmarkSetLargeValue(b, open(b))
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, open(b))
	})

	b.Run("Batch", func(b *testing.B) {
		benchmarkBatch(b, open(b))
	})

	b.Run("Scan", func(b *testing.B) {
		benchmarkScan(b, open(b))
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, open(b))
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Set operation
func benchmarkSet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	var counter int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := atomic.AddInt64(&counter, 1)
			database.Set(fmt.Sprintf("test-key-%d", i), []byte(fmt.Sprintf("test-value-%d", i)))
		}
	})
}

// Benchmark for Set operation with large values
func benchmarkSetLargeValue(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	largeValue := bytes.Repeat([]byte("x"), 64*1024) // 64 KB

	b.SetBytes(int64(len(largeValue)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Set(fmt.Sprintf("large-key-%d", i%1000), largeValue)
	}
}

// Benchmark for Get operation
func benchmarkGet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureGet)

	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		database.Set(fmt.Sprintf("test-key-%d", i), []byte(fmt.Sprintf("test-value-%d", i)))
	}

	var counter int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := atomic.AddInt64(&counter, 1)
			database.Get(fmt.Sprintf("test-key-%d", int(i)%numKeys))
		}
	})
}

// Benchmark for batches of the size a persistence cycle typically produces
func benchmarkBatch(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureBatch)

	const batchSize = 128
	ops := make([]db.Op, batchSize)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := range ops {
			key := fmt.Sprintf("c/bench\x00%06d", j)
			if j%8 == 7 {
				ops[j] = db.Del(key)
			} else {
				ops[j] = db.Put(key, []byte(fmt.Sprintf("value-%d-%d", i, j)))
			}
		}
		if err := database.Apply(ops); err != nil {
			b.Fatalf("Apply failed: %v", err)
		}
	}
}

// Benchmark for a full prefix scan over one component partition
func benchmarkScan(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureScan)

	const numKeys = 5000
	for i := 0; i < numKeys; i++ {
		database.Set(fmt.Sprintf("c/a\x00%06d", i), []byte("value"))
		database.Set(fmt.Sprintf("c/b\x00%06d", i), []byte("value"))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n := 0
		database.Scan("c/a\x00", func(string, []byte) bool {
			n++
			return true
		})
		if n != numKeys {
			b.Fatalf("expected %d entries, got %d", numKeys, n)
		}
	}
}

// Benchmark for mixed usage patterns
func benchmarkMixedUsage(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	// Number of pre-populated keys
	numKeys := 10000
	keys := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		database.Set(keys[i], []byte(fmt.Sprintf("test-value-%d", i)))
	}

	var counter int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		localCounter := 0
		for pb.Next() {
			idx := int(atomic.AddInt64(&counter, 1)-1) % numKeys

			// For every 10th operation, use a completely new key
			key := keys[idx]
			if localCounter%10 == 0 {
				key = fmt.Sprintf("new-key-%d", localCounter)
			}

			switch localCounter % 3 {
			case 0:
				database.Get(key)
			case 1:
				database.Set(key, []byte(fmt.Sprintf("mixed-value-%d", localCounter)))
			case 2:
				database.Delete(key)
			}
			localCounter++
		}
	})
}
