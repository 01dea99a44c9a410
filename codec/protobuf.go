package codec

import "google.golang.org/protobuf/proto"

// Protobuf stores proto messages; the dashboard keeps untyped API documents
// as *structpb.Struct with it.
type Protobuf[T proto.Message] struct {
	empty func() T
}

// NewProtobuf takes a constructor of an empty T.
func NewProtobuf[T proto.Message](empty func() T) Protobuf[T] {
	return Protobuf[T]{empty: empty}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.empty()
	if err := proto.Unmarshal(b, m); err != nil {
		var zero T
		return zero, err
	}
	return m, nil
}
