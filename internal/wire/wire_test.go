package wire

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func mustDecode(t *testing.T, b []byte) Frame {
	t.Helper()
	f, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	return f
}

func TestRoundTripEmptyAndNonEmpty(t *testing.T) {
	now := time.Unix(1700000000, 123)
	cases := []struct {
		gen     uint64
		at      time.Time
		payload []byte
	}{
		{0, time.Time{}, nil},
		{42, now, []byte("hello")},
		{math.MaxUint64, now, []byte{0, 1, 2, 3, 4}},
	}
	for _, tc := range cases {
		f := mustDecode(t, Encode(tc.gen, tc.at, tc.payload))
		if f.Gen != tc.gen {
			t.Fatalf("gen mismatch: got %d want %d", f.Gen, tc.gen)
		}
		if !f.FetchedAt.Equal(tc.at) {
			t.Fatalf("fetchedAt mismatch: got %v want %v", f.FetchedAt, tc.at)
		}
		if !bytes.Equal(f.Payload, tc.payload) {
			t.Fatalf("payload mismatch: got %x want %x", f.Payload, tc.payload)
		}
	}
}

func TestRejectsTrailingBytes(t *testing.T) {
	enc := Encode(7, time.Now(), []byte("x"))
	enc = append(enc, 0xDE, 0xAD)
	if _, err := Decode(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestCorruptHeadersAndLengths(t *testing.T) {
	enc := Encode(1, time.Now(), []byte("abc"))

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, err := Decode(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, err := Decode(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	// vlen sits after magic(4) ver(1) gen(8) ts(8)
	tooLong := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(tooLong[21:25], uint32(len("abc")+1))
	if _, err := Decode(tooLong); err == nil {
		t.Fatalf("expected error on vlen beyond buffer")
	}

	if _, err := Decode(enc[:len(enc)-1]); err == nil {
		t.Fatalf("expected error on truncated buffer")
	}
	if _, err := Decode([]byte("DSYN")); err == nil {
		t.Fatalf("expected error on header-only buffer")
	}
}

func TestZeroCopyPayload(t *testing.T) {
	enc := Encode(1, time.Time{}, []byte("Z"))
	f := mustDecode(t, enc)
	f.Payload[0] = 'Q'
	if mustDecode(t, enc).Payload[0] != 'Q' {
		t.Fatalf("expected payload to alias the encoded buffer")
	}
}
