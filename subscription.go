package dashsync

import (
	"context"
	"sync/atomic"
	"time"
)

// Subscription is one consumer of a key: a view, a CLI watch loop, a session.
// It owns a loader and an enabled predicate. Closing it cancels its in-flight
// loads; their results are dropped unless another subscription still watches
// the key.
type Subscription struct {
	c        *Cache
	e        *entry
	loader   Loader
	enabled  func() bool
	onChange func(Entry)

	ctx    context.Context
	cancel context.CancelFunc

	closed      atomic.Bool
	lastEnabled atomic.Bool
}

type SubscribeOption func(*Subscription)

// WithEnabled sets the predicate deciding whether the subscription may fetch.
// It is re-evaluated on every Sync and Refresh. Default: always enabled.
func WithEnabled(f func() bool) SubscribeOption {
	return func(s *Subscription) { s.enabled = f }
}

// WithOnChange registers a callback receiving the entry view after every status
// or data change. Callbacks run on the goroutine that caused the change.
func WithOnChange(f func(Entry)) SubscribeOption {
	return func(s *Subscription) { s.onChange = f }
}

// Subscribe registers a consumer of key. It does not fetch; call Sync.
func (c *Cache) Subscribe(key Key, loader Loader, opts ...SubscribeOption) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Subscription{
		c:       c,
		loader:  loader,
		enabled: func() bool { return true },
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, o := range opts {
		o(s)
	}

	id := key.ID()
	c.mu.Lock()
	e := c.entries[id]
	if e == nil {
		e = c.newEntry(key)
		c.entries[id] = e
	}
	e.mu.Lock()
	e.subs[s] = struct{}{}
	e.touched = time.Now()
	e.mu.Unlock()
	c.mu.Unlock()

	s.e = e
	if c.closed.Load() {
		s.Close()
	}
	return s
}

func (s *Subscription) Key() Key { return s.e.key }

// Enabled re-derives and records the enabled predicate.
func (s *Subscription) Enabled() bool {
	if s.closed.Load() {
		s.lastEnabled.Store(false)
		return false
	}
	en := s.enabled()
	s.lastEnabled.Store(en)
	return en
}

// Sync fetches the key if the subscription is enabled and the entry is stale
// or absent. Concurrent Syncs of one key share a request.
func (s *Subscription) Sync(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.Enabled() {
		return nil
	}
	ctx, stop := s.bind(ctx)
	defer stop()
	return s.c.fetch(ctx, s.e, s.loader, s)
}

// Refresh forces a new request if the subscription is enabled.
func (s *Subscription) Refresh(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.Enabled() {
		return nil
	}
	ctx, stop := s.bind(ctx)
	defer stop()
	return s.c.run(ctx, s.e, s.loader, s)
}

// Entry returns the current view of the subscribed key.
func (s *Subscription) Entry(ctx context.Context) Entry {
	v, _ := s.c.Get(ctx, s.e.key)
	return v
}

// Close is idempotent.
func (s *Subscription) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.cancel()
	s.lastEnabled.Store(false)
	s.e.mu.Lock()
	delete(s.e.subs, s)
	s.e.touched = time.Now()
	s.e.mu.Unlock()
}

// bind derives a context that also ends when the subscription closes.
func (s *Subscription) bind(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (e *entry) anyEnabled() bool {
	for s := range e.subs {
		if s.lastEnabled.Load() {
			return true
		}
	}
	return false
}

// firstEnabled picks a subscription able to refetch e. Predicates run outside
// the entry lock since they are caller code.
func (e *entry) firstEnabled() *Subscription {
	e.mu.Lock()
	subs := make([]*Subscription, 0, len(e.subs))
	for s := range e.subs {
		subs = append(subs, s)
	}
	e.mu.Unlock()
	for _, s := range subs {
		if s.Enabled() {
			return s
		}
	}
	return nil
}
