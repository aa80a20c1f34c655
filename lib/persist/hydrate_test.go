package persist

import (
	"testing"

	"github.com/ValentinKolb/eKV/lib/codec"
	"github.com/ValentinKolb/eKV/lib/db"
	"github.com/ValentinKolb/eKV/lib/ecs"
	"github.com/ValentinKolb/eKV/lib/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFailureSkipsRecord(t *testing.T) {
	env := newEnv(t, db.ImplMaple)
	reg := testRegistry()

	p, fs, w := env.open(reg)
	require.NoError(t, p.Hydrate(w))
	ecs.Insert(w, w.Spawn(), Position{X: 1})
	require.NoError(t, p.Sync(w))

	badID := identity.NewStableID()
	require.NoError(t, fs.Put(ComponentKey(positionTag, badID), []byte{0xc1}))
	require.NoError(t, fs.Put(ComponentPrefix(positionTag)+"not-a-stable-id", []byte{0x80}))

	p, _, w = env.restart(p, reg)

	assert.Len(t, entitiesWith(w, positionTag), 1)
	report := p.LastHydration()
	assert.Equal(t, 1, report.Loaded[positionTag])
	assert.Equal(t, 2, report.Skipped[positionTag])
	require.Len(t, report.Issues, 2)
	for _, issue := range report.Issues {
		assert.ErrorIs(t, issue, ErrSchemaMismatch)
	}
	_, ok := p.Identity().Resolve(badID)
	assert.False(t, ok, "skipped records do not bind an id")
	assert.Equal(t, uint64(2), p.Stats().HydrateSkipped)
	assert.Equal(t, uint64(1), p.Stats().Hydrated)
}

func TestMetaMismatchIsReported(t *testing.T) {
	env := newEnv(t, db.ImplMaple)

	p, _, w := env.open(testRegistry(codec.WithSchemaVersion(1)))
	require.NoError(t, p.Hydrate(w))
	ecs.Insert(w, w.Spawn(), Position{X: 1, Y: 1})
	require.NoError(t, p.Sync(w))

	// same shape, new version: decoding still works
	p, fs, w := env.restart(p, testRegistry(codec.WithSchemaVersion(2)))
	report := p.LastHydration()
	require.Len(t, report.Issues, 1)
	assert.ErrorIs(t, report.Issues[0], ErrSchemaMismatch)
	assert.Contains(t, report.Issues[0].Error(), "schema version 1 != 2")
	assert.Len(t, entitiesWith(w, positionTag), 1)

	// all records decoded, so the meta record was updated
	b, ok, err := fs.Get(MetaKey(positionTag))
	require.NoError(t, err)
	require.True(t, ok)
	meta, err := DecodeMeta(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), meta.SchemaVersion)
	assert.Equal(t, codec.FormatMsgPack, meta.Format)
}

func TestMetaMismatchKeptWhileRecordsFail(t *testing.T) {
	env := newEnv(t, db.ImplMaple)

	p, _, w := env.open(testRegistry())
	require.NoError(t, p.Hydrate(w))
	ecs.Insert(w, w.Spawn(), Position{X: 1})
	require.NoError(t, p.Sync(w))

	// msgpack records cannot be read as JSON
	jsonReg := testRegistry(codec.WithFormat(codec.NewJSONFormat()))
	p, fs, _ := env.restart(p, jsonReg)
	report := p.LastHydration()
	assert.Equal(t, 1, report.Skipped[positionTag])

	b, _, err := fs.Get(MetaKey(positionTag))
	require.NoError(t, err)
	meta, err := DecodeMeta(b)
	require.NoError(t, err)
	assert.Equal(t, codec.FormatMsgPack, meta.Format, "the old meta stays until the records are purged")
}

func TestUnknownTagsAreLeftAlone(t *testing.T) {
	env := newEnv(t, db.ImplMaple)

	p, _, w := env.open(testRegistry())
	require.NoError(t, p.Hydrate(w))
	e := w.Spawn()
	ecs.Insert(w, e, Position{X: 1})
	ecs.Insert(w, e, Name{Value: "kept"})
	require.NoError(t, p.Sync(w))

	onlyPosition := codec.NewRegistry()
	codec.MustRegister[Position](onlyPosition)
	p, fs, w := env.restart(p, onlyPosition)

	assert.Equal(t, []ecs.ComponentTag{nameTag}, p.LastHydration().UnknownTags)
	require.NoError(t, p.Sync(w))
	assert.Len(t, records(t, fs, nameTag), 1, "records of unregistered types are not deleted")
}

func TestHydrateRebindsAllComponents(t *testing.T) {
	env := newEnv(t, db.ImplPebble)
	reg := testRegistry()

	p, _, w := env.open(reg)
	require.NoError(t, p.Hydrate(w))
	for i := 0; i < 10; i++ {
		e := w.Spawn()
		ecs.Insert(w, e, Position{X: float64(i)})
		if i%2 == 0 {
			ecs.Insert(w, e, Name{Value: "even"})
		}
	}
	require.NoError(t, p.Sync(w))

	p, _, w = env.restart(p, reg)
	assert.Equal(t, 10, w.Len(), "one entity per stable id")
	assert.Len(t, entitiesWith(w, nameTag), 5)
	assert.Equal(t, 10, p.Identity().Len())

	for _, e := range entitiesWith(w, nameTag) {
		pos, ok := ecs.Get[Position](w, e)
		require.True(t, ok)
		assert.Equal(t, 0, int(pos.X)%2)
	}
}

func TestHydrateFailsOnStorageError(t *testing.T) {
	env := newEnv(t, db.ImplMaple)
	s, err := OpenStore(env.cfg)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	p := New(s, testRegistry(), identity.NewMap())
	err = p.Hydrate(ecs.NewWorld())
	assert.ErrorIs(t, err, ErrStorage)
	assert.False(t, p.Hydrated())
}
