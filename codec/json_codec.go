package codec

import "encoding/json"

// JSONCodec uses the standard library's encoding/json.
// Pros: human-readable, cross-language, easy to debug.
// Cons: slower than the binary codec, larger payload on the wire.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
