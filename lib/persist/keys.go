package persist

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ValentinKolb/eKV/lib/codec"
	"github.com/ValentinKolb/eKV/lib/ecs"
	"github.com/ValentinKolb/eKV/lib/identity"
)

// --------------------------------------------------------------------------
// Key layout
// --------------------------------------------------------------------------
//
//	c/<tag>\x00<stable id>   component record (encoded value)
//	m/<tag>                  type meta record (JSON, see TypeMeta)
//
// Tags never contain NUL, so "c/<tag>\x00" is a prefix that matches exactly the
// records of one tag.

const (
	componentPrefix = "c/"
	metaPrefix      = "m/"
	tagSeparator    = "\x00"
)

// ComponentPrefix returns the key prefix of all records of tag.
func ComponentPrefix(tag ecs.ComponentTag) string {
	return componentPrefix + string(tag) + tagSeparator
}

// ComponentKey returns the key of the record of tag owned by id.
func ComponentKey(tag ecs.ComponentTag, id identity.StableID) string {
	return ComponentPrefix(tag) + id.String()
}

// ParseComponentKey splits a component record key into tag and stable id.
func ParseComponentKey(key string) (ecs.ComponentTag, identity.StableID, error) {
	rest, ok := strings.CutPrefix(key, componentPrefix)
	if !ok {
		return "", identity.Nil, fmt.Errorf("not a component key: %q", key)
	}
	tag, idStr, ok := strings.Cut(rest, tagSeparator)
	if !ok || tag == "" {
		return "", identity.Nil, fmt.Errorf("component key without tag: %q", key)
	}
	id, err := identity.ParseStableID(idStr)
	if err != nil {
		return ecs.ComponentTag(tag), identity.Nil, err
	}
	return ecs.ComponentTag(tag), id, nil
}

// MetaKey returns the key of the type meta record of tag.
func MetaKey(tag ecs.ComponentTag) string {
	return metaPrefix + string(tag)
}

// MetaPrefix is the prefix of all type meta records.
func MetaPrefix() string {
	return metaPrefix
}

// --------------------------------------------------------------------------
// Type meta record
// --------------------------------------------------------------------------

// TypeMeta describes how the records of a tag were written.
type TypeMeta struct {
	Format        string `json:"format" yaml:"format"`
	SchemaVersion uint32 `json:"schema_version" yaml:"schema_version"`
	Type          string `json:"type" yaml:"type"`
}

func metaOf(e codec.Entry) TypeMeta {
	return TypeMeta{
		Format:        e.Format,
		SchemaVersion: e.SchemaVersion,
		Type:          e.TypeName(),
	}
}

// DecodeMeta parses a stored meta record.
func DecodeMeta(b []byte) (TypeMeta, error) {
	var m TypeMeta
	err := json.Unmarshal(b, &m)
	return m, err
}

func (m TypeMeta) encode() []byte {
	b, _ := json.Marshal(m) // a struct of strings and ints cannot fail
	return b
}

// mismatch describes the difference between a stored and the registered meta,
// empty when compatible. The Go type name is informational only.
func (m TypeMeta) mismatch(registered TypeMeta) string {
	var diffs []string
	if m.Format != registered.Format {
		diffs = append(diffs, fmt.Sprintf("format %s != %s", m.Format, registered.Format))
	}
	if m.SchemaVersion != registered.SchemaVersion {
		diffs = append(diffs, fmt.Sprintf("schema version %d != %d", m.SchemaVersion, registered.SchemaVersion))
	}
	return strings.Join(diffs, ", ")
}
