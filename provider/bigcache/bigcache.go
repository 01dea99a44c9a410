// Package bigcache keeps payloads in allegro/bigcache shards. Entries live for
// one global LifeWindow and are evicted oldest first, so it suits long
// dashboard sessions holding many large lists.
package bigcache

import (
	"cmp"
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	pr "github.com/unkn0wn-root/dashsync/provider"
)

type Provider struct {
	c *bc.BigCache
}

var (
	_ pr.Provider      = (*Provider)(nil)
	_ pr.StatsReporter = (*Provider)(nil)
	_ pr.Purger        = (*Provider)(nil)
)

type Config struct {
	LifeWindow         time.Duration // global TTL; per-entry TTLs are ignored. 0 => 10m
	CleanWindow        time.Duration
	Shards             int // power of two; 0 => 64
	MaxEntriesInWindow int // sizing hint; 0 => 1024
	MaxEntrySize       int // sizing hint in bytes; 0 => 4096
	HardMaxCacheSizeMB int // 0 = unlimited
}

// New sizes the shards for a dashboard session rather than bigcache's
// server defaults, which preallocate hundreds of megabytes.
func New(cfg Config) (*Provider, error) {
	conf := bc.DefaultConfig(cmp.Or(cfg.LifeWindow, 10*time.Minute))
	conf.Verbose = false
	conf.Shards = cmp.Or(cfg.Shards, 64)
	conf.MaxEntriesInWindow = cmp.Or(cfg.MaxEntriesInWindow, 1024)
	conf.MaxEntrySize = cmp.Or(cfg.MaxEntrySize, 4096)
	conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	if err := p.c.Set(key, value); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	err := p.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (p *Provider) Stats(context.Context) (pr.Stats, error) {
	st := p.c.Stats()
	return pr.Stats{Entries: int64(p.c.Len()), Hits: uint64(st.Hits), Misses: uint64(st.Misses)}, nil
}

func (p *Provider) Purge(context.Context) error { return p.c.Reset() }

func (p *Provider) Close(_ context.Context) error {
	return p.c.Close()
}
