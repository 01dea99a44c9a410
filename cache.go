package dashsync

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	gen "github.com/unkn0wn-root/dashsync/genstore"
	"github.com/unkn0wn-root/dashsync/internal/util"
	"github.com/unkn0wn-root/dashsync/internal/wire"
	pr "github.com/unkn0wn-root/dashsync/provider"
)

type Status uint8

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Entry is a point-in-time view of one cached query.
type Entry struct {
	Key           Key
	Data          []byte // last good payload; nil if never fetched or evicted
	Status        Status
	Err           error // last fetch error; cleared by the next success
	LastFetchedAt time.Time
	Enabled       bool // some live subscription currently wants this entry
	Stale         bool // invalidated, older than StaleTime, or absent
}

type entry struct {
	key  Key
	skey string

	mu        sync.Mutex
	status    Status // settled status; Loading is derived from live
	err       error
	fetchedAt time.Time
	reqGen    uint64              // last issued request generation
	applied   uint64              // last applied request generation
	resetGen  uint64              // requests at or below were issued before a reset
	live      map[uint64]struct{} // in-flight request generations
	subs      map[*Subscription]struct{}
	touched   time.Time
}

func (e *entry) loading() bool {
	for g := range e.live {
		if g > e.applied {
			return true
		}
	}
	return false
}

func (e *entry) current() Status {
	if e.loading() {
		return StatusLoading
	}
	return e.status
}

// Cache holds query entries for one dashboard session.
// It is safe for concurrent use; each entry applies results under its own lock.
type Cache struct {
	ns             string
	provider       pr.Provider
	gens           gen.GenStore
	ownGens        bool
	log            Logger
	hooks          Hooks
	staleTime      time.Duration
	ttl            time.Duration
	retention      time.Duration
	cost           SetCostFunc
	onUnauthorized func()

	mu      sync.RWMutex
	entries map[string]*entry

	sf singleflight.Group

	closed    atomic.Bool
	stopCh    chan struct{}
	closeWg   sync.WaitGroup
	closeOnce sync.Once
}

func New(opts Options) (*Cache, error) {
	if opts.Provider == nil {
		return nil, errors.New("dashsync: provider is required")
	}
	c := &Cache{
		ns:             coalesce(opts.Namespace, defaultNamespace),
		provider:       opts.Provider,
		gens:           opts.GenStore,
		log:            coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:          coalesce[Hooks](opts.Hooks, NopHooks{}),
		staleTime:      opts.StaleTime,
		ttl:            coalesce(opts.DefaultTTL, defaultTTL),
		retention:      coalesce(opts.EntryRetention, defaultEntryRetention),
		cost:           opts.ComputeSetCost,
		onUnauthorized: opts.OnUnauthorized,
		entries:        make(map[string]*entry),
		stopCh:         make(chan struct{}),
	}
	if c.cost == nil {
		c.cost = func(_ string, raw []byte) int64 { return int64(len(raw)) }
	}
	interval := coalesce(opts.CleanupInterval, defaultCleanupInterval)
	if c.gens == nil {
		c.gens = gen.NewLocal(interval, coalesce(opts.GenRetention, defaultGenRetention))
		c.ownGens = true
	}

	c.closeWg.Add(1)
	go c.cleanupLoop(interval)
	return c, nil
}

// Close stops background work, cancels every subscription and closes the provider.
func (c *Cache) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.stopCh)
		c.closeWg.Wait()

		for _, e := range c.all() {
			e.mu.Lock()
			subs := make([]*Subscription, 0, len(e.subs))
			for s := range e.subs {
				subs = append(subs, s)
			}
			e.mu.Unlock()
			for _, s := range subs {
				s.Close()
			}
		}
		var errs []error
		if c.ownGens {
			errs = append(errs, c.gens.Close(ctx))
		}
		errs = append(errs, c.provider.Close(ctx))
		err = errors.Join(errs...)
	})
	return err
}

// Get returns the current view of key. ok is false when the cache has never
// seen the key and the provider holds no payload for it.
func (c *Cache) Get(ctx context.Context, key Key) (Entry, bool) {
	out := Entry{Key: key, Stale: true}

	c.mu.RLock()
	e := c.entries[key.ID()]
	c.mu.RUnlock()

	known := e != nil
	if known {
		e.mu.Lock()
		out.Status = e.current()
		out.Err = e.err
		out.LastFetchedAt = e.fetchedAt
		out.Enabled = e.anyEnabled()
		e.touched = time.Now()
		e.mu.Unlock()
	}

	skey := c.storageKey(key)
	fr, ok := c.read(ctx, skey)
	if !ok {
		return out, known
	}
	out.Data = bytes.Clone(fr.Payload)
	if fr.FetchedAt.After(out.LastFetchedAt) {
		out.LastFetchedAt = fr.FetchedAt
	}
	if !known {
		out.Status = StatusSuccess
	}
	out.Stale = c.stale(ctx, skey, fr)
	return out, true
}

// Fetch loads key through loader when enabled and the entry is stale or absent.
// Concurrent Fetches of one key share a single request.
func (c *Cache) Fetch(ctx context.Context, key Key, loader Loader, enabled bool) error {
	if c.closed.Load() {
		return ErrClosed
	}
	e := c.entry(key)
	if !enabled {
		return nil
	}
	return c.fetch(ctx, e, loader, nil)
}

// Refetch forces a new request for key regardless of freshness.
func (c *Cache) Refetch(ctx context.Context, key Key, loader Loader) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.run(ctx, c.entry(key), loader, nil)
}

// Invalidate marks every entry whose key starts with pattern as stale and
// refetches the ones an enabled subscription is watching. Last good data stays
// readable until the refetch lands. It returns the number of matched entries
// once the refetches settled; refetch failures surface on the entries.
func (c *Cache) Invalidate(ctx context.Context, pattern Key) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	matched := c.match(pattern)
	c.hooks.Invalidated(pattern, len(matched))
	if len(matched) == 0 {
		return 0, nil
	}

	skeys := make([]string, len(matched))
	for i, e := range matched {
		skeys[i] = e.skey
	}
	bumped, bumpErr := c.gens.BumpMany(ctx, skeys)

	var errs []error
	for _, e := range matched {
		if _, ok := bumped[e.skey]; ok {
			continue
		}
		berr := bumpErr
		if berr == nil {
			berr = errors.New("generation not bumped")
		}
		c.hooks.GenBumpError(e.skey, berr)
		// without a new generation the payload would still read as fresh
		derr := c.provider.Del(ctx, e.skey)
		if derr != nil {
			c.hooks.InvalidateOutage(e.key, berr, derr)
		}
		errs = append(errs, &InvalidateError{Key: e.key, BumpErr: berr, DelErr: derr})
	}
	c.log.Debug("invalidated", Fields{"pattern": pattern.String(), "matched": len(matched)})

	var g errgroup.Group
	for _, e := range matched {
		sub := e.firstEnabled()
		if sub == nil {
			c.emit(ctx, e)
			continue
		}
		g.Go(func() error {
			bctx, stop := sub.bind(ctx)
			defer stop()
			_ = c.run(bctx, e, sub.loader, sub)
			return nil
		})
	}
	_ = g.Wait()
	return len(matched), errors.Join(errs...)
}

// Reset drops every cached payload and settles all entries back to Idle.
// Responses to requests issued before the reset are discarded. A provider.Purger
// is purged as a whole, which also clears payloads of earlier processes.
func (c *Cache) Reset(ctx context.Context) error {
	var errs []error
	entries := c.all()
	for _, e := range entries {
		e.mu.Lock()
		if err := c.provider.Del(ctx, e.skey); err != nil {
			errs = append(errs, err)
		}
		e.resetGen = e.reqGen
		e.applied = e.reqGen
		e.status = StatusIdle
		e.err = nil
		e.fetchedAt = time.Time{}
		e.mu.Unlock()
	}
	if p, ok := c.provider.(pr.Purger); ok {
		if err := p.Purge(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, e := range entries {
		c.emit(ctx, e)
	}
	c.log.Info("cache reset", Fields{"entries": len(entries)})
	return errors.Join(errs...)
}

// Keys lists the keys the cache currently tracks.
func (c *Cache) Keys() []Key {
	entries := c.all()
	out := make([]Key, len(entries))
	for i, e := range entries {
		out[i] = e.key
	}
	return out
}

// ProviderStats reports the provider's Stats. ok is false when the provider
// cannot report them.
func (c *Cache) ProviderStats(ctx context.Context) (st pr.Stats, ok bool, err error) {
	r, ok := c.provider.(pr.StatsReporter)
	if !ok {
		return pr.Stats{}, false, nil
	}
	st, err = r.Stats(ctx)
	return st, true, err
}

func (c *Cache) storageKey(k Key) string {
	return util.StorageKey("q:"+c.ns, k.ID())
}

// StoragePattern is a glob matching every provider key a cache with the given
// namespace writes.
func StoragePattern(namespace string) string {
	return "q:" + coalesce(namespace, defaultNamespace) + ":*"
}

func (c *Cache) entry(key Key) *entry {
	id := key.ID()
	c.mu.RLock()
	e := c.entries[id]
	c.mu.RUnlock()
	if e != nil {
		return e
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e = c.entries[id]; e == nil {
		e = c.newEntry(key)
		c.entries[id] = e
	}
	return e
}

func (c *Cache) newEntry(key Key) *entry {
	return &entry{
		key:     key,
		skey:    c.storageKey(key),
		live:    make(map[uint64]struct{}),
		subs:    make(map[*Subscription]struct{}),
		touched: time.Now(),
	}
}

func (c *Cache) all() []*entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out
}

func (c *Cache) match(pattern Key) []*entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*entry
	for _, e := range c.entries {
		if e.key.HasPrefix(pattern) {
			out = append(out, e)
		}
	}
	return out
}

func (c *Cache) read(ctx context.Context, skey string) (wire.Frame, bool) {
	raw, ok, err := c.provider.Get(ctx, skey)
	if err != nil {
		c.log.Warn("provider get failed", Fields{"skey": skey, "err": err})
		return wire.Frame{}, false
	}
	if !ok {
		return wire.Frame{}, false
	}
	fr, err := wire.Decode(raw)
	if err != nil {
		c.selfHeal(ctx, skey, "corrupt")
		return wire.Frame{}, false
	}
	return fr, true
}

func (c *Cache) selfHeal(ctx context.Context, skey, reason string) {
	_ = c.provider.Del(ctx, skey)
	c.hooks.SelfHeal(skey, reason)
	c.log.Warn("dropped unreadable payload", Fields{"skey": skey, "reason": reason})
}

func (c *Cache) stale(ctx context.Context, skey string, fr wire.Frame) bool {
	cur, err := c.gens.Snapshot(ctx, skey)
	if err != nil {
		c.hooks.GenSnapshotError(1, err)
		return true
	}
	if cur != fr.Gen {
		return true
	}
	return c.staleTime > 0 && time.Since(fr.FetchedAt) > c.staleTime
}

func (c *Cache) needsFetch(ctx context.Context, e *entry) bool {
	fr, ok := c.read(ctx, e.skey)
	if !ok {
		return true
	}
	return c.stale(ctx, e.skey, fr)
}

func (c *Cache) fetch(ctx context.Context, e *entry, loader Loader, sub *Subscription) error {
	if !c.needsFetch(ctx, e) {
		return nil
	}
	_, err, _ := c.sf.Do(e.key.ID(), func() (any, error) {
		if !c.needsFetch(ctx, e) {
			return nil, nil
		}
		return nil, c.run(ctx, e, loader, sub)
	})
	return err
}

// run issues one request for e and applies its result under the latest-wins rule.
// It returns the loader error, if any.
func (c *Cache) run(ctx context.Context, e *entry, loader Loader, sub *Subscription) error {
	startGen, gerr := c.gens.Snapshot(ctx, e.skey)
	if gerr != nil {
		c.hooks.GenSnapshotError(1, gerr)
		c.log.Warn("gen snapshot failed; result will not be checked against invalidations",
			Fields{"key": e.key.String(), "err": gerr})
	}

	e.mu.Lock()
	e.reqGen++
	g := e.reqGen
	e.live[g] = struct{}{}
	e.touched = time.Now()
	e.mu.Unlock()
	c.emit(ctx, e)

	data, lerr := loader(ctx)
	c.apply(ctx, e, sub, g, startGen, gerr == nil, data, lerr)
	return lerr
}

func (c *Cache) apply(ctx context.Context, e *entry, sub *Subscription, g, startGen uint64, checkGen bool, data []byte, lerr error) {
	bg := context.WithoutCancel(ctx)

	moved := false
	if lerr == nil && checkGen {
		cur, err := c.gens.Snapshot(bg, e.skey)
		if err != nil {
			c.hooks.GenSnapshotError(1, err)
		} else {
			moved = cur != startGen
		}
	}

	now := time.Now()
	e.mu.Lock()
	delete(e.live, g)
	var reason string
	switch {
	case g <= e.resetGen:
		reason = ReasonReset
	case g <= e.applied:
		reason = ReasonSuperseded
	case sub != nil && sub.closed.Load() && len(e.subs) == 0:
		reason = ReasonUnsubscribed
	case lerr != nil && ctx.Err() != nil:
		reason = ReasonCancelled
	case moved:
		reason = ReasonInvalidated
	}
	if reason != "" {
		e.mu.Unlock()
		c.hooks.FetchDiscarded(e.key, reason)
		c.log.Debug("fetch result discarded", Fields{"key": e.key.String(), "gen": g, "reason": reason})
		c.emit(bg, e)
		return
	}

	e.applied = g
	e.touched = now
	if lerr != nil {
		e.status = StatusError
		e.err = lerr
	} else {
		raw := wire.Encode(startGen, now, data)
		ok, err := c.provider.Set(bg, e.skey, raw, c.cost(e.skey, raw), c.ttl)
		switch {
		case err != nil:
			c.log.Warn("provider set failed", Fields{"key": e.key.String(), "err": err})
		case !ok:
			c.hooks.ProviderSetRejected(e.skey)
			c.log.Debug("provider rejected set (pressure)", Fields{"key": e.key.String()})
		}
		e.status = StatusSuccess
		e.err = nil
		e.fetchedAt = now
	}
	e.mu.Unlock()

	if lerr != nil {
		c.hooks.FetchFailed(e.key, lerr)
		c.log.Warn("fetch failed", Fields{"key": e.key.String(), "err": lerr})
	}
	c.emit(bg, e)

	if errors.Is(lerr, ErrUnauthorized) {
		c.unauthorized(bg)
	}
}

func (c *Cache) unauthorized(ctx context.Context) {
	if err := c.Reset(ctx); err != nil {
		c.log.Warn("reset after unauthorized failed", Fields{"err": err})
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

// emit delivers the entry's current view to subscribers with an OnChange callback.
func (c *Cache) emit(ctx context.Context, e *entry) {
	e.mu.Lock()
	var cbs []func(Entry)
	for s := range e.subs {
		if s.onChange != nil {
			cbs = append(cbs, s.onChange)
		}
	}
	e.mu.Unlock()
	if len(cbs) == 0 {
		return
	}
	view, _ := c.Get(ctx, e.key)
	for _, cb := range cbs {
		cb(view)
	}
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	defer c.closeWg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.prune(c.retention)
		case <-c.stopCh:
			return
		}
	}
}

// prune forgets metadata of entries nobody watches or fetches. Payloads stay
// with the provider until its own eviction.
func (c *Cache) prune(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)
	n := 0
	c.mu.Lock()
	for id, e := range c.entries {
		e.mu.Lock()
		idle := len(e.subs) == 0 && len(e.live) == 0 && e.touched.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(c.entries, id)
			n++
		}
	}
	c.mu.Unlock()
	return n
}
