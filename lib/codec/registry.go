package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/ValentinKolb/eKV/lib/ecs"
	"github.com/cespare/xxhash/v2"
)

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrSerialization matches every encode or decode failure (see Error).
	ErrSerialization = errors.New("serialization error")
	// ErrUnknownTag is returned for operations on tags that were never registered.
	ErrUnknownTag = errors.New("unknown component tag")

	errTrailingData = errors.New("trailing data after value")
)

// Error describes a failed encode or decode of a single value.
// It matches ErrSerialization with errors.Is.
type Error struct {
	Tag ecs.ComponentTag
	Op  string // "encode" or "decode"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Tag, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrSerialization }

// --------------------------------------------------------------------------
// Registration
// --------------------------------------------------------------------------

// Entry is the codec table row of one registered component type.
type Entry struct {
	Tag           ecs.ComponentTag
	Format        string
	SchemaVersion uint32

	typ       reflect.Type
	unordered bool // the format writes Go maps in iteration order
	encode    func(value any) ([]byte, error)
	decode    func(b []byte) (any, error)
}

// TypeName returns the Go type registered under the entry's tag.
func (e Entry) TypeName() string { return e.typ.String() }

type options struct {
	tag           ecs.ComponentTag
	format        IFormat
	schemaVersion uint32
}

// Option customizes a registration.
type Option func(*options)

// WithTag overrides the default tag derived from the Go type. Use this to keep
// a stable tag when a type is renamed or moved.
func WithTag(tag ecs.ComponentTag) Option {
	return func(o *options) { o.tag = tag }
}

// WithFormat selects the value encoding (default: MessagePack).
func WithFormat(f IFormat) Option {
	return func(o *options) { o.format = f }
}

// WithSchemaVersion stamps the registration with a version that is stored next
// to the records. A differing version at load time is reported as a mismatch.
func WithSchemaVersion(v uint32) Option {
	return func(o *options) { o.schemaVersion = v }
}

// Registry maps component tags to encode/decode function pairs.
//
// Thread-safety: registration is not thread-safe and is expected to happen
// before the registry is used. Encode and Decode are safe for concurrent use
// once registration is done.
type Registry struct {
	entries map[ecs.ComponentTag]*Entry
	byType  map[reflect.Type]ecs.ComponentTag
	order   []ecs.ComponentTag
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[ecs.ComponentTag]*Entry),
		byType:  make(map[reflect.Type]ecs.ComponentTag),
	}
}

// ValidateTag checks that a tag can be embedded into store keys.
func ValidateTag(tag ecs.ComponentTag) error {
	if tag == "" {
		return fmt.Errorf("component tag must not be empty")
	}
	if strings.ContainsRune(string(tag), 0) {
		return fmt.Errorf("component tag %q must not contain NUL", tag)
	}
	return nil
}

// Register adds T to the registry and returns its tag. Registering the same
// type under the same tag again is a no-op. A type can only have one tag and
// a tag can only belong to one type.
//
// Components are stored by value: T must not be a pointer type and Encode
// rejects *T. A pointer mutated in place would never be seen as changed.
func Register[T any](r *Registry, opts ...Option) (ecs.ComponentTag, error) {
	cfg := options{
		tag:    ecs.TagOf[T](),
		format: NewMsgPackFormat(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := ValidateTag(cfg.tag); err != nil {
		return "", err
	}
	if cfg.format == nil {
		return "", fmt.Errorf("no format given for %q", cfg.tag)
	}

	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() == reflect.Pointer {
		return "", fmt.Errorf("cannot register pointer type %s, components are stored by value", typ)
	}

	if existing, ok := r.entries[cfg.tag]; ok {
		if existing.typ == typ {
			return cfg.tag, nil
		}
		return "", fmt.Errorf("tag %q is already registered for %s", cfg.tag, existing.typ)
	}
	if tag, ok := r.byType[typ]; ok {
		return "", fmt.Errorf("type %s is already registered under tag %q", typ, tag)
	}

	format := cfg.format
	entry := &Entry{
		Tag:           cfg.tag,
		Format:        format.Name(),
		SchemaVersion: cfg.schemaVersion,
		typ:           typ,
		unordered:     format.Name() != FormatJSON && containsMap(typ, map[reflect.Type]bool{}),
		encode: func(value any) ([]byte, error) {
			if v, ok := value.(T); ok {
				return format.Marshal(v)
			}
			return nil, fmt.Errorf("expected %s value, got %T", typ, value)
		},
		decode: func(b []byte) (any, error) {
			var v T
			if err := format.Unmarshal(b, &v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}

	r.entries[cfg.tag] = entry
	r.byType[typ] = cfg.tag
	r.order = append(r.order, cfg.tag)
	return cfg.tag, nil
}

// containsMap reports whether values of t can hold a Go map. Interfaces count
// since their dynamic value is unknown.
func containsMap(t reflect.Type, seen map[reflect.Type]bool) bool {
	if seen[t] {
		return false
	}
	seen[t] = true
	switch t.Kind() {
	case reflect.Map, reflect.Interface:
		return true
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return containsMap(t.Elem(), seen)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if containsMap(t.Field(i).Type, seen) {
				return true
			}
		}
	}
	return false
}

// MustRegister is like Register but panics on error.
func MustRegister[T any](r *Registry, opts ...Option) ecs.ComponentTag {
	tag, err := Register[T](r, opts...)
	if err != nil {
		panic(err)
	}
	return tag
}

// --------------------------------------------------------------------------
// Lookup and dispatch
// --------------------------------------------------------------------------

// Lookup returns the entry registered under tag.
func (r *Registry) Lookup(tag ecs.ComponentTag) (Entry, bool) {
	e, ok := r.entries[tag]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Tags returns all registered tags in registration order.
func (r *Registry) Tags() []ecs.ComponentTag {
	out := make([]ecs.ComponentTag, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered types.
func (r *Registry) Len() int { return len(r.order) }

// Encode encodes a component value. The result is never partial: on error no
// bytes are returned.
func (r *Registry) Encode(tag ecs.ComponentTag, value any) ([]byte, error) {
	e, ok := r.entries[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}
	b, err := e.encode(value)
	if err != nil {
		return nil, &Error{Tag: tag, Op: "encode", Err: err}
	}
	return b, nil
}

// Decode decodes stored bytes into a component value of the registered type.
func (r *Registry) Decode(tag ecs.ComponentTag, b []byte) (any, error) {
	e, ok := r.entries[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}
	v, err := e.decode(b)
	if err != nil {
		return nil, &Error{Tag: tag, Op: "decode", Err: err}
	}
	return v, nil
}

// Fingerprint hashes an encoded value for change detection. Equal values give
// equal fingerprints: for formats that write maps in iteration order the hash
// is taken over the JSON rendering of value (sorted map keys) instead of the
// encoded bytes.
func (r *Registry) Fingerprint(tag ecs.ComponentTag, value any, encoded []byte) uint64 {
	e, ok := r.entries[tag]
	if !ok || !e.unordered {
		return xxhash.Sum64(encoded)
	}
	d := xxhash.New()
	if err := json.NewEncoder(d).Encode(value); err != nil {
		return xxhash.Sum64(encoded)
	}
	return d.Sum64()
}
