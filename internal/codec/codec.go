// Package codec wraps the serialization libraries behind one interface, one
// implementation per payload format.
package codec

import (
	"bytes"
	"encoding/json"

	"github.com/goccy/go-yaml"
)

type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal keeps numbers as json.Number so integers survive a round trip
// through an untyped tree.
func (JSONCodec) Unmarshal(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}

type YAMLCodec struct{}

func (YAMLCodec) Marshal(v any) ([]byte, error) {
	return yaml.MarshalWithOptions(plainNumbers(v), yaml.UseJSONMarshaler())
}

func (YAMLCodec) Unmarshal(b []byte, v any) error {
	return yaml.UnmarshalWithOptions(b, v, yaml.UseJSONUnmarshaler())
}

var (
	_ Codec = JSONCodec{}
	_ Codec = YAMLCodec{}
)

// plainNumbers replaces json.Number in untyped trees, which YAML would
// otherwise write as strings.
func plainNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plainNumbers(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainNumbers(e)
		}
		return out
	}
	return v
}
