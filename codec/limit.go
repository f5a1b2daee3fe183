package codec

import (
	"errors"
	"fmt"
)

var ErrTooLarge = errors.New("codec: payload too large")

// WithMaxSize caps the payloads inner may produce or accept. An oversized
// stored entry fails to decode, which the cache treats as corrupt and
// deletes. max <= 0 returns inner unchanged.
func WithMaxSize[V any](inner Codec[V], max int) Codec[V] {
	if max <= 0 {
		return inner
	}
	return limited[V]{inner: inner, max: max}
}

type limited[V any] struct {
	inner Codec[V]
	max   int
}

func (c limited[V]) Encode(v V) ([]byte, error) {
	b, err := c.inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if len(b) > c.max {
		return nil, fmt.Errorf("%w: encoded %d > %d", ErrTooLarge, len(b), c.max)
	}
	return b, nil
}

func (c limited[V]) Decode(b []byte) (V, error) {
	if len(b) > c.max {
		var zero V
		return zero, fmt.Errorf("%w: %d > %d", ErrTooLarge, len(b), c.max)
	}
	return c.inner.Decode(b)
}
