package codec

import (
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// CBOR is a compact binary codec for query results. Output is byte-stable
// (core deterministic encoding) so equal results produce equal frames.
// Field names fall back to `json` tags. The zero value is ready to use.
type CBOR[V any] struct{}

type cborModes struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var loadCBOR = sync.OnceValues(func() (cborModes, error) {
	eo := cbor.CoreDetEncOptions()
	eo.Time = cbor.TimeRFC3339Nano
	enc, err := eo.EncMode()
	if err != nil {
		return cborModes{}, err
	}
	dec, err := cbor.DecOptions{MaxNestedLevels: 64}.DecMode()
	if err != nil {
		return cborModes{}, err
	}
	return cborModes{enc: enc, dec: dec}, nil
})

func (CBOR[V]) Encode(v V) ([]byte, error) {
	m, err := loadCBOR()
	if err != nil {
		return nil, err
	}
	return m.enc.Marshal(v)
}

func (CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	m, err := loadCBOR()
	if err != nil {
		return v, err
	}
	err = m.dec.Unmarshal(b, &v)
	return v, err
}
