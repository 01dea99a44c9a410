// Package codec turns typed query results into the bytes a Provider stores.
package codec

import "fmt"

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Names lists the codecs ByName accepts.
var Names = []string{"json", "cbor", "msgpack"}

// ByName returns the payload codec configured as name. "" means json.
func ByName[V any](name string) (Codec[V], error) {
	switch name {
	case "", "json":
		return JSON[V]{}, nil
	case "cbor":
		return CBOR[V]{}, nil
	case "msgpack":
		return Msgpack[V]{}, nil
	}
	return nil, fmt.Errorf("codec: unknown codec %q", name)
}

// Bounded wraps the named codec in a Limit of maxDecode bytes. Unknown names
// fall back to json.
func Bounded[V any](name string, maxDecode int) Codec[V] {
	c, err := ByName[V](name)
	if err != nil {
		c = JSON[V]{}
	}
	return Limit[V]{Inner: c, MaxDecode: maxDecode}
}
