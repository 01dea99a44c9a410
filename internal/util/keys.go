package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// StorageKey maps a canonical key identity to a fixed-width provider key.
// Canonical identities are binary (CBOR) and unbounded in length, so they are hashed.
func StorageKey(prefix, canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return prefix + ":" + hex.EncodeToString(sum[:16])
}
