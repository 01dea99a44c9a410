// Package provider defines where dashsync keeps cached payloads and who evicts them.
//
// The cache keeps entry metadata (status, error, subscribers) in process and hands
// framed payloads to a Provider. Eviction policy belongs to the Provider: an evicted
// payload simply reads as a miss and the entry is refetched on next use.
//
// Implementations MUST be byte-for-byte transparent: Get returns exactly the bytes
// passed to Set. The keyspace "q:<ns>:" is owned by dashsync.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. ttl <= 0 means no expiry (or the store's global policy).
	// ok=false reports the store refused the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	Close(ctx context.Context) error
}

// Stats is a point-in-time view of a provider. Counts may be approximate.
type Stats struct {
	Entries int64
	Hits    uint64
	Misses  uint64
}

// StatsReporter is implemented by providers that can describe their contents.
type StatsReporter interface {
	Stats(ctx context.Context) (Stats, error)
}

// Purger is implemented by providers that can drop every payload at once,
// including ones written by an earlier process.
type Purger interface {
	Purge(ctx context.Context) error
}
