// Package lru is the default in-process provider: a size-bounded least-recently-used
// store backed by hashicorp/golang-lru.
package lru

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	pr "github.com/unkn0wn-root/dashsync/provider"
)

var ErrInvalidSize = errors.New("lru provider: size must be positive")

type Config struct {
	Size int           // max entries
	TTL  time.Duration // global expiry; 0 = none. Per-call TTLs are not supported.
}

type LRU struct {
	c      *expirable.LRU[string, []byte]
	hits   atomic.Uint64
	misses atomic.Uint64
}

var (
	_ pr.Provider      = (*LRU)(nil)
	_ pr.StatsReporter = (*LRU)(nil)
	_ pr.Purger        = (*LRU)(nil)
)

func New(cfg Config) (*LRU, error) {
	if cfg.Size <= 0 {
		return nil, ErrInvalidSize
	}
	return &LRU{c: expirable.NewLRU[string, []byte](cfg.Size, nil, cfg.TTL)}, nil
}

func (p *LRU) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		p.misses.Add(1)
		return nil, false, nil
	}
	p.hits.Add(1)
	return v, true, nil
}

func (p *LRU) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	p.c.Add(key, value)
	return true, nil
}

func (p *LRU) Del(_ context.Context, key string) error {
	p.c.Remove(key)
	return nil
}

// Len reports the number of live payloads.
func (p *LRU) Len() int { return p.c.Len() }

func (p *LRU) Purge(context.Context) error {
	p.c.Purge()
	return nil
}

func (p *LRU) Close(ctx context.Context) error { return p.Purge(ctx) }

func (p *LRU) Stats(context.Context) (pr.Stats, error) {
	return pr.Stats{Entries: int64(p.c.Len()), Hits: p.hits.Load(), Misses: p.misses.Load()}, nil
}
