// Package wire frames cached payloads before they are handed to a Provider.
//
// Frame: magic(4) | ver(1) | gen(u64 be) | fetchedAt(i64 be, unix nanos) | vlen(u32 be) | payload(vlen)
//
// gen is the invalidation generation observed when the request started. A frame whose
// gen differs from the current generation of its key is stale but still readable.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version byte = 1
	hdrLen       = 4 + 1 + 8 + 8 + 4
)

var (
	ErrCorrupt = errors.New("dashsync: corrupt entry")
	magic4     = [...]byte{'D', 'S', 'Y', 'N'}
)

// Frame is a decoded entry. Payload aliases the input buffer.
type Frame struct {
	Gen       uint64
	FetchedAt time.Time
	Payload   []byte
}

func Encode(gen uint64, fetchedAt time.Time, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u8 [8]byte
	binary.BigEndian.PutUint64(u8[:], gen)
	buf.Write(u8[:])

	var ts int64
	if !fetchedAt.IsZero() {
		ts = fetchedAt.UnixNano()
	}
	binary.BigEndian.PutUint64(u8[:], uint64(ts))
	buf.Write(u8[:])

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

func Decode(b []byte) (Frame, error) {
	if len(b) < hdrLen || !bytes.Equal(b[:4], magic4[:]) || b[4] != version {
		return Frame{}, ErrCorrupt
	}
	off := 5

	gen := binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	ts := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	// strict framing: the payload must end exactly at the end of the buffer
	if vlen < 0 || vlen != len(b)-off {
		return Frame{}, ErrCorrupt
	}

	f := Frame{Gen: gen, Payload: b[off : off+vlen]}
	if ts != 0 {
		f.FetchedAt = time.Unix(0, ts)
	}
	return f, nil
}
