// Package ristretto adapts dgraph-io/ristretto (TinyLFU admission, cost-based eviction).
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/dashsync/provider"
)

type Provider struct {
	c *rc.Cache
}

var (
	_ pr.Provider      = (*Provider)(nil)
	_ pr.StatsReporter = (*Provider)(nil)
	_ pr.Purger        = (*Provider)(nil)
)

type Config struct {
	NumCounters int64 // 0 => 10 * MaxCost
	MaxCost     int64 // required; the cache passes payload length as cost by default
	BufferItems int64 // 0 => 64
	Metrics     bool
}

func New(cfg Config) (*Provider, error) {
	if cfg.MaxCost <= 0 {
		return nil, errors.New("ristretto: MaxCost must be positive")
	}
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = 10 * cfg.MaxCost
	}
	if cfg.BufferItems <= 0 {
		cfg.BufferItems = 64
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

// Set waits for the write buffer so a Get right after a successful Set observes it;
// the cache reads back immediately after applying a fetch.
func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	ok := p.c.SetWithTTL(key, value, cost, ttl)
	p.c.Wait()
	return ok, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

// Purge also zeroes the metrics.
func (p *Provider) Purge(context.Context) error {
	p.c.Clear()
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Stats needs Config.Metrics; without it every count is zero. Entries is
// admitted minus evicted keys and ignores explicit deletes.
func (p *Provider) Stats(context.Context) (pr.Stats, error) {
	m := p.c.Metrics
	entries := int64(m.KeysAdded()) - int64(m.KeysEvicted())
	return pr.Stats{Entries: max(entries, 0), Hits: m.Hits(), Misses: m.Misses()}, nil
}
