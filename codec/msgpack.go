package codec

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// NewMsgpack returns a compact binary codec. Struct fields follow their
// `json:"..."` tags, so API record types need no msgpack tags. Map keys are
// sorted, which keeps encodings of equal records identical.
func NewMsgpack[V any]() Codec[V] { return msgpackCodec[V]{} }

type msgpackCodec[V any] struct{}

func (msgpackCodec[V]) Encode(v V) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec[V]) Decode(b []byte) (V, error) {
	var v V
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	err := dec.Decode(&v)
	return v, err
}
