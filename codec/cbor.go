package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

type CBOROptions struct {
	// Canonical selects RFC 8949 core deterministic encoding, for when equal
	// values must produce equal bytes.
	Canonical bool
}

// NewCBOR builds a CBOR codec. Times are encoded as RFC3339Nano strings and
// maps decoded into interface values come back as map[string]any, the same
// shape encoding/json produces, so API records keep their type across a
// round trip.
func NewCBOR[V any](opts CBOROptions) (Codec[V], error) {
	eo := cbor.PreferredUnsortedEncOptions()
	if opts.Canonical {
		eo = cbor.CoreDetEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	em, err := eo.EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		return nil, err
	}
	return cborCodec[V]{enc: em, dec: dm}, nil
}

type cborCodec[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func (c cborCodec[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }

func (c cborCodec[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}
