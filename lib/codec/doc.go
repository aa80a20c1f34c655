// Package codec provides the per-component-type encode/decode table used by the
// persistence engine.
//
// Every registered type gets an Entry holding a tag, a format name, a schema
// version and a pair of closures built by the generic Register function. No
// reflection is involved when values are encoded or decoded; reflection is only
// used once at registration to detect duplicate registrations.
//
// Formats:
//
//   - msgpack: MessagePack via hashicorp/go-msgpack. Compact, the default.
//   - json: strict JSON (unknown fields and trailing data are rejected), useful
//     when the store should be human readable.
//   - gob: Go's gob encoding.
//
// Components are stored by value, pointer types cannot be registered.
// Fingerprint gives the hash the persistence engine uses for change detection;
// it does not depend on Go map iteration order.
//
// All failures are reported as *Error values matching ErrSerialization. A
// failed call never returns partial bytes or a partially decoded value.
//
// Usage:
//
//	reg := codec.NewRegistry()
//	tag := codec.MustRegister[Position](reg, codec.WithFormat(codec.NewJSONFormat()))
//	b, err := reg.Encode(tag, Position{X: 1})
//	v, err := reg.Decode(tag, b)
package codec
