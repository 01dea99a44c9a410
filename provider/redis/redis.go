// Package redis keeps cached payloads in Redis so several dashboard sessions (or a
// restarted CLI) share last-good data. Pair it with genstore.RedisGenStore so that
// invalidations are shared too.
package redis

import (
	"cmp"
	"context"
	"errors"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/dashsync/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

const purgeBatch = 256

type Config struct {
	Client goredis.UniversalClient
	// Match is the SCAN pattern Stats counts, usually
	// dashsync.StoragePattern(namespace). Default: "*".
	Match string
	// Owned closes Client together with the provider.
	Owned bool
}

type Redis struct {
	rdb   goredis.UniversalClient
	match string
	owned bool

	hits, misses atomic.Uint64
}

var (
	_ pr.Provider      = (*Redis)(nil)
	_ pr.StatsReporter = (*Redis)(nil)
	_ pr.Purger        = (*Redis)(nil)
)

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{
		rdb:   cfg.Client,
		match: cmp.Or(cfg.Match, "*"),
		owned: cfg.Owned,
	}, nil
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		p.misses.Add(1)
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	p.hits.Add(1)
	return b, true, nil
}

// Set ignores cost; Redis evicts by its own maxmemory policy.
func (p *Redis) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if err := p.rdb.Set(ctx, key, value, max(ttl, 0)).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Redis) Del(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, key).Err()
}

// Stats walks the matching keys with SCAN, so Entries is approximate while
// other sessions write.
func (p *Redis) Stats(ctx context.Context) (pr.Stats, error) {
	var n int64
	it := p.rdb.Scan(ctx, 0, p.match, purgeBatch).Iterator()
	for it.Next(ctx) {
		n++
	}
	if err := it.Err(); err != nil {
		return pr.Stats{}, err
	}
	return pr.Stats{Entries: n, Hits: p.hits.Load(), Misses: p.misses.Load()}, nil
}

// Purge unlinks every matching key. Other sessions sharing the namespace
// lose their payloads too.
func (p *Redis) Purge(ctx context.Context) error {
	batch := make([]string, 0, purgeBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := p.rdb.Unlink(ctx, batch...).Err()
		batch = batch[:0]
		return err
	}
	it := p.rdb.Scan(ctx, 0, p.match, purgeBatch).Iterator()
	for it.Next(ctx) {
		batch = append(batch, it.Val())
		if len(batch) == purgeBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := it.Err(); err != nil {
		return err
	}
	return flush()
}

// Close releases the client when the provider owns it. Repeated calls are no-ops.
func (p *Redis) Close(context.Context) error {
	if !p.owned {
		return nil
	}
	if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}
