package codec

import (
	"fmt"
	"testing"

	"github.com/ValentinKolb/eKV/lib/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type player struct {
	Name  string
	Score uint32
	Tags  []string
}

// testFormats is a map of format name to factory function
var testFormats = map[string]func() IFormat{
	FormatMsgPack: NewMsgPackFormat,
	FormatJSON:    NewJSONFormat,
	FormatGOB:     NewGOBFormat,
}

func TestFormatRoundTrip(t *testing.T) {
	for name, factory := range testFormats {
		t.Run(name, func(t *testing.T) {
			r := NewRegistry()
			tag, err := Register[player](r, WithFormat(factory()))
			require.NoError(t, err)

			want := player{Name: "ada", Score: 42, Tags: []string{"a", "b"}}
			b, err := r.Encode(tag, want)
			require.NoError(t, err)

			got, err := r.Decode(tag, b)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			entry, ok := r.Lookup(tag)
			require.True(t, ok)
			assert.Equal(t, name, entry.Format)
		})
	}
}

func TestNewFormat(t *testing.T) {
	for name := range testFormats {
		f := NewFormat(name)
		require.NotNil(t, f, name)
		assert.Equal(t, name, f.Name())
	}
	assert.Nil(t, NewFormat("bincode"))
}

func TestRegisterIdempotent(t *testing.T) {
	r := NewRegistry()
	tag1, err := Register[position](r)
	require.NoError(t, err)
	tag2, err := Register[position](r)
	require.NoError(t, err)

	assert.Equal(t, tag1, tag2)
	assert.Equal(t, ecs.TagOf[position](), tag1)
	assert.Equal(t, 1, r.Len())
}

func TestRegisterConflicts(t *testing.T) {
	r := NewRegistry()
	_, err := Register[position](r, WithTag("pos"))
	require.NoError(t, err)

	_, err = Register[player](r, WithTag("pos"))
	assert.Error(t, err, "tag already owned by another type")

	_, err = Register[position](r, WithTag("position"))
	assert.Error(t, err, "type already registered under another tag")

	_, err = Register[player](r, WithTag(""))
	assert.Error(t, err)
	_, err = Register[player](r, WithTag("a\x00b"))
	assert.Error(t, err)

	assert.Panics(t, func() { MustRegister[player](r, WithTag("pos")) })
}

func TestTagsInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	MustRegister[player](r, WithTag("b"))
	MustRegister[position](r, WithTag("a"))
	assert.Equal(t, []ecs.ComponentTag{"b", "a"}, r.Tags())
}

func TestPointerComponentsRejected(t *testing.T) {
	r := NewRegistry()
	_, err := Register[*position](r)
	assert.Error(t, err)
	assert.Zero(t, r.Len())

	tag := MustRegister[position](r, WithFormat(NewJSONFormat()))
	b, err := r.Encode(tag, &position{X: 5})
	assert.ErrorIs(t, err, ErrSerialization)
	assert.Nil(t, b)
}

type inventory struct {
	Owner string
	Items map[string]int
}

func TestFingerprintIgnoresMapOrder(t *testing.T) {
	items := make(map[string]int)
	for i := 0; i < 32; i++ {
		items[fmt.Sprintf("item-%02d", i)] = i
	}

	for name, newFormat := range testFormats {
		t.Run(name, func(t *testing.T) {
			r := NewRegistry()
			tag := MustRegister[inventory](r, WithFormat(newFormat()))
			value := inventory{Owner: "ada", Items: items}

			first, err := r.Encode(tag, value)
			require.NoError(t, err)
			want := r.Fingerprint(tag, value, first)

			for i := 0; i < 20; i++ {
				b, err := r.Encode(tag, value)
				require.NoError(t, err)
				require.Equal(t, want, r.Fingerprint(tag, value, b), "run %d", i)
			}

			changed := inventory{Owner: "ada", Items: map[string]int{"item-00": 1}}
			b, err := r.Encode(tag, changed)
			require.NoError(t, err)
			assert.NotEqual(t, want, r.Fingerprint(tag, changed, b))
		})
	}
}

func TestFingerprintWithoutMaps(t *testing.T) {
	r := NewRegistry()
	tag := MustRegister[position](r)

	b, err := r.Encode(tag, position{X: 1, Y: 2})
	require.NoError(t, err)
	assert.Equal(t, r.Fingerprint(tag, position{X: 1, Y: 2}, b), r.Fingerprint(tag, nil, b),
		"types without maps are fingerprinted by their encoded bytes")
}

func TestSerializationErrors(t *testing.T) {
	r := NewRegistry()
	tag := MustRegister[position](r, WithFormat(NewJSONFormat()))

	_, err := r.Encode(tag, player{Name: "wrong type"})
	assert.ErrorIs(t, err, ErrSerialization)

	var nilPos *position
	_, err = r.Encode(tag, nilPos)
	assert.ErrorIs(t, err, ErrSerialization)

	for name, b := range map[string][]byte{
		"malformed":     []byte("{not json"),
		"unknown field": []byte(`{"x":1,"z":2}`),
		"trailing data": []byte(`{"x":1} {"x":2}`),
		"wrong shape":   []byte(`[1,2]`),
	} {
		v, err := r.Decode(tag, b)
		assert.ErrorIs(t, err, ErrSerialization, name)
		assert.Nil(t, v, name)

		var cerr *Error
		require.ErrorAs(t, err, &cerr, name)
		assert.Equal(t, "decode", cerr.Op)
		assert.Equal(t, tag, cerr.Tag)
	}
}

func TestUnknownTag(t *testing.T) {
	r := NewRegistry()
	_, err := r.Encode("nope", 1)
	assert.ErrorIs(t, err, ErrUnknownTag)
	_, err = r.Decode("nope", nil)
	assert.ErrorIs(t, err, ErrUnknownTag)
	assert.NotErrorIs(t, err, ErrSerialization)
}

func TestPreview(t *testing.T) {
	want := player{Name: "ada", Score: 42, Tags: []string{"a", "b"}}

	for _, format := range []string{FormatMsgPack, FormatJSON} {
		t.Run(format, func(t *testing.T) {
			b, err := NewFormat(format).Marshal(want)
			require.NoError(t, err)

			v, err := Preview(format, b)
			require.NoError(t, err)
			m, ok := v.(map[string]any)
			require.True(t, ok, "expected a map, got %T", v)
			assert.Equal(t, "ada", m["Name"])
			assert.Equal(t, "42", fmt.Sprint(m["Score"]))
			assert.Len(t, m["Tags"], 2)
		})
	}

	b, err := NewGOBFormat().Marshal(want)
	require.NoError(t, err)
	_, err = Preview(FormatGOB, b)
	assert.Error(t, err)

	_, err = Preview(FormatJSON, []byte("{"))
	assert.Error(t, err)
}
