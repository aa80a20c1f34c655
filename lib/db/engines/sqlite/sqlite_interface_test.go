package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/eKV/lib/db"
	dbtesting "github.com/ValentinKolb/eKV/lib/db/testing"
)

func factory(t testing.TB, dir string) db.KVDB {
	kv, err := NewSQLiteDB(&DBOptions{Path: filepath.Join(dir, "ekv.sqlite"), SyncWrites: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	return kv
}

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "SQLiteDB", factory)
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "SQLiteDB", factory)
}

func TestInfoMetadata(t *testing.T) {
	kv := factory(t, t.TempDir())
	defer kv.Close()

	_ = kv.Set("a", []byte("1"))
	info := kv.GetInfo()
	if info.DbType != db.ImplSQLite {
		t.Errorf("unexpected db type %q", info.DbType)
	}
	if info.SizeBytes != 2 {
		t.Errorf("expected 2 bytes of payload, got %d", info.SizeBytes)
	}
	if !kv.SupportsFeature(db.FeatureDurable) {
		t.Errorf("sqlite with synced writes should be durable")
	}
}

func TestMissingPath(t *testing.T) {
	if _, err := NewSQLiteDB(nil); err == nil {
		t.Errorf("expected an error without a path")
	}
}
