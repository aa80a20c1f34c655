package codec

import (
	"bytes"
	"encoding/gob"
	"encoding/json"

	"github.com/hashicorp/go-msgpack/codec"
)

// IFormat is the interface for all value encodings a component type can be stored with.
type IFormat interface {
	// Name identifies the format in the type meta record, it must never change.
	Name() string
	// Marshal encodes v into a new byte slice.
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes b into the value pointed to by v.
	Unmarshal(b []byte, v any) error
}

const (
	FormatMsgPack = "msgpack"
	FormatJSON    = "json"
	FormatGOB     = "gob"
)

// NewFormat returns the format registered under name, nil if unknown.
func NewFormat(name string) IFormat {
	switch name {
	case FormatMsgPack:
		return NewMsgPackFormat()
	case FormatJSON:
		return NewJSONFormat()
	case FormatGOB:
		return NewGOBFormat()
	default:
		return nil
	}
}

// --------------------------------------------------------------------------
// MessagePack (default)
// --------------------------------------------------------------------------

// NewMsgPackFormat creates a format using MessagePack. It is compact and
// tolerant to added fields, which makes it the default for components.
func NewMsgPackFormat() IFormat {
	return &msgPackFormatImpl{handle: &codec.MsgpackHandle{}}
}

type msgPackFormatImpl struct {
	handle *codec.MsgpackHandle
}

func (m *msgPackFormatImpl) Name() string { return FormatMsgPack }

func (m *msgPackFormatImpl) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := codec.NewEncoder(&buf, m.handle).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *msgPackFormatImpl) Unmarshal(b []byte, v any) error {
	return codec.NewDecoderBytes(b, m.handle).Decode(v)
}

// --------------------------------------------------------------------------
// JSON
// --------------------------------------------------------------------------

// NewJSONFormat creates a format using JSON. Decoding is strict: unknown
// fields and trailing data are rejected so that shape changes surface as
// schema mismatches instead of silently dropped data.
func NewJSONFormat() IFormat {
	return &jsonFormatImpl{}
}

type jsonFormatImpl struct{}

func (j *jsonFormatImpl) Name() string { return FormatJSON }

func (j *jsonFormatImpl) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (j *jsonFormatImpl) Unmarshal(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	return nil
}

// --------------------------------------------------------------------------
// GOB
// --------------------------------------------------------------------------

// NewGOBFormat creates a format using Go's gob encoding.
func NewGOBFormat() IFormat {
	return &gobFormatImpl{}
}

type gobFormatImpl struct{}

func (g *gobFormatImpl) Name() string { return FormatGOB }

func (g *gobFormatImpl) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *gobFormatImpl) Unmarshal(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
