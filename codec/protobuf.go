package codec

import (
	"encoding/json"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// NewStructValue stores JSON-shaped values as a binary google.protobuf.Value.
// Vision and listing records are schemaless, so they go through their JSON
// form on the way in and out.
func NewStructValue[V any]() Codec[V] { return structValue[V]{} }

type structValue[V any] struct{}

var marshalOpts = proto.MarshalOptions{Deterministic: true}

func (structValue[V]) Encode(v V) ([]byte, error) {
	js, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(js, &generic); err != nil {
		return nil, err
	}
	pv, err := structpb.NewValue(generic)
	if err != nil {
		return nil, err
	}
	return marshalOpts.Marshal(pv)
}

func (structValue[V]) Decode(b []byte) (V, error) {
	var v V
	pv := &structpb.Value{}
	if err := proto.Unmarshal(b, pv); err != nil {
		return v, err
	}
	js, err := json.Marshal(pv.AsInterface())
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(js, &v)
	return v, err
}

// NewProtobuf stores a concrete proto message type in its binary form.
func NewProtobuf[T proto.Message](ctor func() T) Codec[T] { return protoMessage[T]{new: ctor} }

type protoMessage[T proto.Message] struct {
	new func() T
}

func (c protoMessage[T]) Encode(v T) ([]byte, error) { return marshalOpts.Marshal(v) }

func (c protoMessage[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}
