package codec

import "encoding/json"

// NewJSON returns the default codec. API results arrive as JSON, so caching
// them as JSON keeps entries readable with any redis or sqlite client.
func NewJSON[V any]() Codec[V] { return jsonCodec[V]{} }

type jsonCodec[V any] struct{}

func (jsonCodec[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
