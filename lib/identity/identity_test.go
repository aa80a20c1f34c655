package identity

import (
	"testing"

	"github.com/ValentinKolb/eKV/lib/ecs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindAllocatesOnce(t *testing.T) {
	m := NewMap()
	h := ecs.Entity{Index: 1}

	id, created := m.Bind(h)
	require.True(t, created)
	assert.NotEqual(t, Nil, id)

	again, created := m.Bind(h)
	assert.False(t, created)
	assert.Equal(t, id, again)

	got, ok := m.Resolve(id)
	require.True(t, ok)
	assert.Equal(t, h, got)

	look, ok := m.Lookup(h)
	require.True(t, ok)
	assert.Equal(t, id, look)
	assert.Equal(t, 1, m.Len())
}

func TestDistinctHandlesGetDistinctIDs(t *testing.T) {
	m := NewMap()
	seen := make(map[StableID]bool)
	for i := uint32(0); i < 1000; i++ {
		id, _ := m.Bind(ecs.Entity{Index: i})
		assert.False(t, seen[id], "stable id reused")
		seen[id] = true
	}
	assert.Equal(t, 1000, m.Len())
}

func TestUnbind(t *testing.T) {
	m := NewMap()
	h := ecs.Entity{Index: 7, Generation: 2}
	id, _ := m.Bind(h)

	removed, ok := m.Unbind(h)
	require.True(t, ok)
	assert.Equal(t, id, removed)
	_, ok = m.Resolve(id)
	assert.False(t, ok)
	_, ok = m.Lookup(h)
	assert.False(t, ok)

	_, ok = m.Unbind(h)
	assert.False(t, ok)

	fresh, created := m.Bind(h)
	assert.True(t, created)
	assert.NotEqual(t, id, fresh, "ids are never reused")
}

func TestBindTo(t *testing.T) {
	m := NewMap()
	id := NewStableID()
	a := ecs.Entity{Index: 1}
	b := ecs.Entity{Index: 2}

	require.NoError(t, m.BindTo(id, a))
	require.NoError(t, m.BindTo(id, a), "same pair is a no-op")
	assert.Error(t, m.BindTo(id, b), "id already bound elsewhere")
	assert.Error(t, m.BindTo(NewStableID(), a), "handle already bound elsewhere")
	assert.Error(t, m.BindTo(Nil, b))

	got, _ := m.Bind(a)
	assert.Equal(t, id, got, "bind returns the hydrated id")
}

func TestCollisionPanics(t *testing.T) {
	fixed := StableID(uuid.MustParse("0190a0f4-0000-7000-8000-000000000001"))
	m := NewMapWithGenerator(func() StableID { return fixed })
	m.Bind(ecs.Entity{Index: 1})
	assert.Panics(t, func() { m.Bind(ecs.Entity{Index: 2}) })

	nilGen := NewMapWithGenerator(func() StableID { return Nil })
	assert.Panics(t, func() { nilGen.Bind(ecs.Entity{Index: 1}) })
}

func TestParseStableID(t *testing.T) {
	id := NewStableID()
	parsed, err := ParseStableID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseStableID("not-a-uuid")
	assert.Error(t, err)
	_, err = ParseStableID(uuid.Nil.String())
	assert.Error(t, err)
}

func TestRange(t *testing.T) {
	m := NewMap()
	for i := uint32(0); i < 3; i++ {
		m.Bind(ecs.Entity{Index: i})
	}
	n := 0
	m.Range(func(id StableID, h ecs.Entity) bool {
		got, ok := m.Resolve(id)
		assert.True(t, ok)
		assert.Equal(t, h, got)
		n++
		return true
	})
	assert.Equal(t, 3, n)
}
