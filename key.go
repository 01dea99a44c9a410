package dashsync

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// keyEnc encodes key elements canonically: integers of any Go width share one
// encoding, strings and numbers never collide.
var keyEnc = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Key identifies a cache entry: an ordered tuple of primitive values.
// Two keys are equal iff they have the same elements in the same order.
// The zero Key is the empty tuple and is a prefix of every key.
type Key struct {
	parts []any
	enc   []string
	id    string
}

// K builds a Key. Elements must be strings, bools, integers, floats or nil;
// anything else panics since keys are declared statically by the caller.
func K(parts ...any) Key {
	k := Key{parts: make([]any, len(parts)), enc: make([]string, len(parts))}
	var sb strings.Builder
	for i, p := range parts {
		v := normalize(p)
		b, err := keyEnc.Marshal(v)
		if err != nil {
			panic(fmt.Sprintf("dashsync: key element %d: %v", i, err))
		}
		k.parts[i] = v
		k.enc[i] = string(b)
		sb.Write(b)
	}
	k.id = sb.String()
	return k
}

func normalize(p any) any {
	switch v := p.(type) {
	case nil, string, bool, int64, uint64, float64:
		return v
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return uint64(v)
	case uint8:
		return uint64(v)
	case uint16:
		return uint64(v)
	case uint32:
		return uint64(v)
	case float32:
		return float64(v)
	default:
		panic(fmt.Sprintf("dashsync: unsupported key element %T", p))
	}
}

// ID is the canonical identity of k. Equal keys have equal IDs.
func (k Key) ID() string { return k.id }

func (k Key) Len() int { return len(k.parts) }

// Parts returns a copy of the normalized elements (ints as int64/uint64, floats as float64).
func (k Key) Parts() []any { return append([]any(nil), k.parts...) }

func (k Key) Equal(o Key) bool { return k.id == o.id }

// HasPrefix reports whether p's elements are the leading elements of k.
func (k Key) HasPrefix(p Key) bool {
	if len(p.enc) > len(k.enc) {
		return false
	}
	for i := range p.enc {
		if p.enc[i] != k.enc[i] {
			return false
		}
	}
	return true
}

// Append returns a new key with extra trailing elements.
func (k Key) Append(parts ...any) Key {
	all := make([]any, 0, len(k.parts)+len(parts))
	all = append(all, k.parts...)
	all = append(all, parts...)
	return K(all...)
}

func (k Key) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, p := range k.parts {
		if i > 0 {
			sb.WriteByte(',')
		}
		switch v := p.(type) {
		case nil:
			sb.WriteString("null")
		case string:
			sb.WriteString(strconv.Quote(v))
		default:
			fmt.Fprint(&sb, v)
		}
	}
	sb.WriteByte(']')
	return sb.String()
}
