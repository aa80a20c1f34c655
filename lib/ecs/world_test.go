package ecs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type position struct{ X, Y int }

func TestTagOf(t *testing.T) {
	assert.Equal(t, ComponentTag("github.com/ValentinKolb/eKV/lib/ecs.position"), TagOf[position]())
	assert.Equal(t, ComponentTag("string"), TagOf[string]())
	assert.Equal(t, ComponentTag("[]int"), TagOf[[]int]())
}

func TestSpawnDespawnGenerations(t *testing.T) {
	w := NewWorld()
	a := w.Spawn()
	b := w.Spawn()
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, w.Len())

	require.True(t, w.Despawn(a))
	assert.False(t, w.Alive(a))
	assert.False(t, w.Despawn(a), "despawning a stale handle must fail")

	c := w.Spawn()
	assert.Equal(t, a.Index, c.Index, "index is recycled")
	assert.NotEqual(t, a.Generation, c.Generation)
	assert.True(t, w.Alive(c))
	assert.False(t, w.Alive(a))
}

func TestComponentsAndVersions(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()

	v1 := Insert(w, e, position{X: 1})
	v2 := Insert(w, e, position{X: 2})
	assert.Greater(t, v2, v1)
	assert.Equal(t, v2, w.Version(e, TagOf[position]()))

	p, ok := Get[position](w, e)
	require.True(t, ok)
	assert.Equal(t, position{X: 2}, p)

	assert.True(t, Remove[position](w, e))
	_, ok = Get[position](w, e)
	assert.False(t, ok)
	assert.False(t, Remove[position](w, e))

	w.Despawn(e)
	assert.Zero(t, Insert(w, e, position{}), "insert on stale handle")
}

func TestEachOrderAndStaleness(t *testing.T) {
	w := NewWorld()
	var spawned []Entity
	for i := 0; i < 5; i++ {
		e := w.Spawn()
		Insert(w, e, position{X: i})
		spawned = append(spawned, e)
	}
	w.Despawn(spawned[2])

	var seen []int
	w.Each(TagOf[position](), func(e Entity, value any, version uint64) bool {
		seen = append(seen, value.(position).X)
		assert.NotZero(t, version)
		return true
	})
	assert.Equal(t, []int{0, 1, 3, 4}, seen)

	count := 0
	w.Each(TagOf[position](), func(Entity, any, uint64) bool {
		count++
		return count < 2
	})
	assert.Equal(t, 2, count)
}

func TestIgnoreMarker(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	assert.False(t, w.Ignored(e))
	w.Ignore(e)
	assert.True(t, w.Ignored(e))
	w.Unignore(e)
	assert.False(t, w.Ignored(e))

	w.Ignore(e)
	w.Despawn(e)
	n := w.Spawn()
	assert.False(t, w.Ignored(n), "marker must not survive index recycling")
}

func TestScheduling(t *testing.T) {
	w := NewWorld()
	var calls []string
	w.AddStartupSystem(func(*World) error { calls = append(calls, "startup"); return nil })
	w.AddSystem(func(*World) error { calls = append(calls, "update"); return nil })

	require.NoError(t, w.Update())
	require.NoError(t, w.Update())
	assert.Equal(t, []string{"startup", "update", "update"}, calls)
	assert.Error(t, w.Startup(), "startup runs only once")

	failing := NewWorld()
	boom := errors.New("boom")
	failing.AddStartupSystem(func(*World) error { return boom })
	failing.AddSystem(func(*World) error { t.Fatal("update must not run"); return nil })
	assert.ErrorIs(t, failing.Update(), boom)
}
