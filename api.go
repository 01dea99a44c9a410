package dashsync

import (
	"context"
	"time"

	gen "github.com/unkn0wn-root/dashsync/genstore"
	pr "github.com/unkn0wn-root/dashsync/provider"
)

// Loader performs the server request behind a key and returns the encoded result.
// Returning an error wrapping ErrUnauthorized resets the cache.
type Loader func(ctx context.Context) ([]byte, error)

// SetCostFunc computes the provider cost of a stored frame.
type SetCostFunc func(storageKey string, raw []byte) int64

// Options tune the Cache.
// Only Provider is required; others have sensible defaults.
type Options struct {
	Provider pr.Provider

	Namespace string       // keyspace prefix in the provider; "" => "dashsync"
	GenStore  gen.GenStore // nil => in-process store owned by the cache
	Logger    Logger       // nil => NopLogger
	Hooks     Hooks        // nil => NopHooks

	// StaleTime is how long a successful fetch counts as fresh.
	// 0 keeps entries fresh until they are invalidated.
	StaleTime time.Duration

	DefaultTTL      time.Duration // provider TTL per payload; 0 => 10m
	CleanupInterval time.Duration // 0 => 1m
	EntryRetention  time.Duration // idle unsubscribed entry metadata; 0 => 10m
	GenRetention    time.Duration // local GenStore only; 0 => 24h
	ComputeSetCost  SetCostFunc   // nil => len(raw)

	// OnUnauthorized runs after the cache reset itself because a loader
	// reported ErrUnauthorized.
	OnUnauthorized func()
}
