package persist

import (
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/eKV/lib/codec"
	"github.com/ValentinKolb/eKV/lib/db"
	"github.com/ValentinKolb/eKV/lib/ecs"
	"github.com/ValentinKolb/eKV/lib/identity"
	"github.com/ValentinKolb/eKV/lib/store"
	"github.com/stretchr/testify/require"
)

type Position struct {
	X, Y float64
}

type Name struct {
	Value string
}

var (
	positionTag = ecs.TagOf[Position]()
	nameTag     = ecs.TagOf[Name]()
)

func testRegistry(positionOpts ...codec.Option) *codec.Registry {
	r := codec.NewRegistry()
	codec.MustRegister[Position](r, positionOpts...)
	codec.MustRegister[Name](r)
	return r
}

// faultyStore counts component operations and fails batches on demand.
// Batch is called from the async worker, so all fields are atomic.
type faultyStore struct {
	store.IStore

	fail    atomic.Bool
	batches atomic.Int64
	puts    atomic.Int64
	deletes atomic.Int64
}

func (f *faultyStore) Batch(ops []db.Op) error {
	if f.fail.Load() {
		return store.NewError(store.RetCStorageError, "injected failure")
	}
	if err := f.IStore.Batch(ops); err != nil {
		return err
	}
	f.batches.Add(1)
	for _, op := range ops {
		if !strings.HasPrefix(op.Key, componentPrefix) {
			continue
		}
		if op.Type == db.OpPut {
			f.puts.Add(1)
		} else {
			f.deletes.Add(1)
		}
	}
	return nil
}

// env is a storage location that can be opened repeatedly to simulate restarts
type env struct {
	t   *testing.T
	cfg Config
}

func newEnv(t *testing.T, engine db.Implementation) *env {
	return &env{t: t, cfg: Config{Location: t.TempDir(), Engine: engine, SyncWrites: true}}
}

// open starts a new "process": a fresh store handle, identity map and world
func (e *env) open(reg *codec.Registry, opts ...Option) (*Persister, *faultyStore, *ecs.World) {
	e.t.Helper()
	s, err := OpenStore(e.cfg)
	require.NoError(e.t, err)
	fs := &faultyStore{IStore: s}
	p := New(fs, reg, identity.NewMap(), opts...)
	e.t.Cleanup(func() { p.Close() })
	return p, fs, ecs.NewWorld()
}

// restart closes p and opens the location again, already hydrated
func (e *env) restart(p *Persister, reg *codec.Registry, opts ...Option) (*Persister, *faultyStore, *ecs.World) {
	e.t.Helper()
	require.NoError(e.t, p.Close())
	np, fs, w := e.open(reg, opts...)
	require.NoError(e.t, np.Hydrate(w))
	return np, fs, w
}

// records returns all component records of tag, keyed by stable id
func records(t *testing.T, s store.IStore, tag ecs.ComponentTag) map[identity.StableID][]byte {
	t.Helper()
	out := make(map[identity.StableID][]byte)
	err := s.ScanPrefix(ComponentPrefix(tag), func(key string, value []byte) bool {
		_, id, err := ParseComponentKey(key)
		require.NoError(t, err)
		out[id] = value
		return true
	})
	require.NoError(t, err)
	return out
}

// entitiesWith returns all entities carrying tag in iteration order
func entitiesWith(w *ecs.World, tag ecs.ComponentTag) []ecs.Entity {
	var out []ecs.Entity
	w.Each(tag, func(e ecs.Entity, _ any, _ uint64) bool {
		out = append(out, e)
		return true
	})
	return out
}
