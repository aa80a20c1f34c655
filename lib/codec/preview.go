package codec

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/hashicorp/go-msgpack/codec"
)

// Preview decodes a stored value without knowing its Go type. The result only
// contains maps with string keys, slices and scalars, so it can be rendered as
// JSON or YAML. Gob values carry no self-describing structure and cannot be
// previewed.
func Preview(format string, b []byte) (any, error) {
	var v any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
	case FormatMsgPack:
		h := &codec.MsgpackHandle{RawToString: true}
		h.MapType = reflect.TypeOf(map[string]any(nil))
		if err := codec.NewDecoderBytes(b, h).Decode(&v); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("no preview for format %q", format)
	}
	return v, nil
}
