package dashsync

import (
	"context"
	"time"

	"github.com/unkn0wn-root/dashsync/codec"
)

// Query binds a key to a typed loader. The zero Codec is JSON.
type Query[V any] struct {
	Key   Key
	Codec codec.Codec[V]
	Load  func(ctx context.Context) (V, error)
}

// Result is the typed view of an Entry.
type Result[V any] struct {
	Data          V
	HasData       bool
	Status        Status
	Err           error
	LastFetchedAt time.Time
	Enabled       bool
	Stale         bool
}

func (q Query[V]) codec() codec.Codec[V] {
	if q.Codec != nil {
		return q.Codec
	}
	return codec.JSON[V]{}
}

// Loader adapts Load to the byte-level Cache.
func (q Query[V]) Loader() Loader {
	cd := q.codec()
	return func(ctx context.Context) ([]byte, error) {
		v, err := q.Load(ctx)
		if err != nil {
			return nil, err
		}
		return cd.Encode(v)
	}
}

// Decode converts an entry view. A payload that does not decode is reported
// as missing data.
func (q Query[V]) Decode(e Entry) Result[V] {
	r := Result[V]{
		Status:        e.Status,
		Err:           e.Err,
		LastFetchedAt: e.LastFetchedAt,
		Enabled:       e.Enabled,
		Stale:         e.Stale,
	}
	if e.Data == nil {
		return r
	}
	v, err := q.codec().Decode(e.Data)
	if err != nil {
		r.Stale = true
		return r
	}
	r.Data, r.HasData = v, true
	return r
}

func (q Query[V]) Get(ctx context.Context, c *Cache) (Result[V], bool) {
	e, ok := c.Get(ctx, q.Key)
	r := q.Decode(e)
	if e.Data != nil && !r.HasData {
		c.selfHeal(ctx, c.storageKey(q.Key), "value_decode")
	}
	return r, ok
}

// Fetch loads when enabled and stale, then returns the resulting view. The
// view carries the last good data even when err is non-nil.
func (q Query[V]) Fetch(ctx context.Context, c *Cache, enabled bool) (Result[V], error) {
	err := c.Fetch(ctx, q.Key, q.Loader(), enabled)
	r, _ := q.Get(ctx, c)
	return r, err
}

func (q Query[V]) Refetch(ctx context.Context, c *Cache) (Result[V], error) {
	err := c.Refetch(ctx, q.Key, q.Loader())
	r, _ := q.Get(ctx, c)
	return r, err
}

// Subscribe registers a typed consumer. onChange may be nil.
func (q Query[V]) Subscribe(c *Cache, onChange func(Result[V]), opts ...SubscribeOption) *Subscription {
	if onChange != nil {
		opts = append(opts, WithOnChange(func(e Entry) { onChange(q.Decode(e)) }))
	}
	return c.Subscribe(q.Key, q.Loader(), opts...)
}
