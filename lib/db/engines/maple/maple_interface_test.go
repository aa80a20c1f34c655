package maple

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/eKV/lib/db"
	dbtesting "github.com/ValentinKolb/eKV/lib/db/testing"
)

func factory(t testing.TB, dir string) db.KVDB {
	kv, err := NewMapleDB(&DBOptions{NumShards: 4, SnapshotPath: filepath.Join(dir, "maple.snap")})
	if err != nil {
		t.Fatalf("failed to open maple: %v", err)
	}
	return kv
}

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "MapleDB", factory)
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "MapleDB", factory)
}

func TestSaveLoad(t *testing.T) {
	src, _ := NewMapleDB(&DBOptions{NumShards: 3})
	defer src.Close()
	for _, k := range []string{"b", "a", "c/x"} {
		if err := src.Set(k, []byte("v-"+k)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := src.(db.Snapshotter).Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	dst, _ := NewMapleDB(&DBOptions{NumShards: 5})
	defer dst.Close()
	_ = dst.Set("stale", []byte("x"))
	if err := dst.(db.Snapshotter).Load(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, ok, _ := dst.Get("stale"); ok {
		t.Errorf("Load should replace the previous content")
	}
	for _, k := range []string{"a", "b", "c/x"} {
		v, ok, err := dst.Get(k)
		if err != nil || !ok || string(v) != "v-"+k {
			t.Errorf("Get(%q) = %q, %v, %v", k, v, ok, err)
		}
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	kv, _ := NewMapleDB(nil)
	defer kv.Close()
	_ = kv.Set("keep", []byte("me"))

	if err := kv.(db.Snapshotter).Load(bytes.NewReader([]byte("NOTMAPLE and more"))); err == nil {
		t.Errorf("expected magic number error")
	}
	if _, ok, _ := kv.Get("keep"); !ok {
		t.Errorf("failed Load must keep the previous content")
	}
}

func TestCorruptSnapshotFailsOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maple.snap")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewMapleDB(&DBOptions{SnapshotPath: path}); err == nil {
		t.Errorf("expected an error for a corrupt snapshot")
	}
}
