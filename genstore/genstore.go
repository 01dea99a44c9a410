// Package genstore holds invalidation generations for cached queries.
//
// Every invalidation bumps the generation of each matching entry. A cached payload
// records the generation it was fetched under; a mismatch marks it stale, and a
// fetch that started before a bump is not allowed to write its result.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
// Use Local (default) for in-process gens, or Redis to share invalidations
// between dashboard sessions.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, key string) (uint64, error)
	// SnapshotMany returns gens for many keys; missing => 0.
	SnapshotMany(ctx context.Context, keys []string) (map[string]uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, key string) (uint64, error)
	// BumpMany bumps every key and returns the new generations. Keys that failed
	// are absent from the result and reported through err.
	BumpMany(ctx context.Context, keys []string) (map[string]uint64, error)
	// Cleanup prunes old metadata if applicable.
	Cleanup(retention time.Duration)
	Close(context.Context) error
}
