package ecs

import (
	"fmt"
	"reflect"
)

// --------------------------------------------------------------------------
// Entity Handle
// --------------------------------------------------------------------------

// Entity is the runtime handle of an entity. It is only valid within a single
// process execution and must never be written to durable storage.
//
// The generation distinguishes a recycled index from the entity that
// previously occupied it.
type Entity struct {
	Index      uint32
	Generation uint32
}

func (e Entity) String() string {
	return fmt.Sprintf("%dv%d", e.Index, e.Generation)
}

// --------------------------------------------------------------------------
// Component Tags
// --------------------------------------------------------------------------

// ComponentTag is the stable namespace of a component type. The same tag must
// mean the same type for the whole lifetime of a store.
type ComponentTag string

// TagOf derives the default tag of T from its package path and type name,
// e.g. "github.com/acme/game.Position".
func TagOf[T any]() ComponentTag {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.PkgPath() == "" || t.Name() == "" {
		// unnamed or builtin types, e.g. []int or string
		return ComponentTag(t.String())
	}
	return ComponentTag(t.PkgPath() + "." + t.Name())
}
