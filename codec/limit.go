package codec

import "fmt"

// Limit refuses to decode payloads over MaxDecode bytes; MaxDecode <= 0
// disables the check. A shared redis provider may hold frames written by
// another client.
type Limit[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

func (c Limit[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }

func (c Limit[V]) Decode(b []byte) (V, error) {
	if n := len(b); c.MaxDecode > 0 && n > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("codec: %d byte payload exceeds limit of %d", n, c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
