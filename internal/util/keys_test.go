package util

import (
	"strings"
	"testing"
)

func TestStorageKeyDeterministicAndPrefixed(t *testing.T) {
	a := StorageKey("q:dash", "\x82\x61a\x01")
	b := StorageKey("q:dash", "\x82\x61a\x01")
	if a != b {
		t.Fatalf("StorageKey not deterministic: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "q:dash:") {
		t.Fatalf("missing prefix: %q", a)
	}
	if len(a) != len("q:dash:")+32 {
		t.Fatalf("unexpected length %d for %q", len(a), a)
	}
	if c := StorageKey("q:dash", "\x82\x61a\x02"); c == a {
		t.Fatalf("different identities collided: %q", c)
	}
}
