// Package codec converts cached values to and from bytes. The cache frames
// whatever a codec produces with its own entry header, so codecs never see
// timestamps or TTLs.
package codec

import (
	"errors"
	"fmt"
)

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Format names a storage encoding selectable from configuration.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCBOR     Format = "cbor"
	FormatMsgpack  Format = "msgpack"
	FormatProtobuf Format = "protobuf"
)

// Formats lists every name ForName accepts.
var Formats = []Format{FormatJSON, FormatCBOR, FormatMsgpack, FormatProtobuf}

var ErrUnknownFormat = errors.New("codec: unknown format")

// ForName returns the codec for a configured format; "" means JSON.
// Protobuf stores values as google.protobuf.Value, so V must have a JSON
// representation.
func ForName[V any](name string) (Codec[V], error) {
	switch Format(name) {
	case "", FormatJSON:
		return NewJSON[V](), nil
	case FormatCBOR:
		return NewCBOR[V](CBOROptions{})
	case FormatMsgpack:
		return NewMsgpack[V](), nil
	case FormatProtobuf:
		return NewStructValue[V](), nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownFormat, name)
}
