package live

import (
	"context"
	"sync"
	"time"

	"github.com/unkn0wn-root/dashsync"
)

const leaveTimeout = 5 * time.Second

// Resolver maps a resolved identifier to a room and its bindings. An empty room
// means there is nothing to subscribe to for that identifier.
type Resolver func(id string) (room string, bindings Bindings)

// Deferred subscribes once an identifier becomes known (for example the user id
// after auth/me resolves) and follows later changes of that identifier.
type Deferred struct {
	b      *Bridge
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	id  string
	sub *Subscription
	err error
}

// Defer waits on ids. Each distinct id replaces the previous subscription.
// The stage ends when ids closes, ctx ends, or Close is called.
func (b *Bridge) Defer(ctx context.Context, ids <-chan string, resolve Resolver) *Deferred {
	ctx, cancel := context.WithCancel(ctx)
	d := &Deferred{b: b, cancel: cancel, done: make(chan struct{})}
	go d.run(ctx, ids, resolve)
	return d
}

func (d *Deferred) run(ctx context.Context, ids <-chan string, resolve Resolver) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-ids:
			if !ok {
				return
			}
			d.switchTo(ctx, id, resolve)
		}
	}
}

func (d *Deferred) switchTo(ctx context.Context, id string, resolve Resolver) {
	d.mu.Lock()
	same := id == d.id && d.sub != nil
	d.mu.Unlock()
	if same {
		return
	}

	var sub *Subscription
	var err error
	if room, bindings := resolve(id); room != "" {
		sub, err = d.b.Subscribe(ctx, room, bindings)
	}
	if err != nil {
		d.b.log.Warn("deferred subscribe failed", dashsync.Fields{"id": id, "err": err})
	}

	d.mu.Lock()
	old := d.sub
	d.id, d.sub, d.err = id, sub, err
	d.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// Subscription is nil until an identifier resolved to a room.
func (d *Deferred) Subscription() *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sub
}

// Err is the error of the latest subscribe attempt.
func (d *Deferred) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Close stops waiting and tears down the current subscription, if any.
func (d *Deferred) Close() {
	d.cancel()
	<-d.done
	d.mu.Lock()
	sub := d.sub
	d.sub = nil
	d.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}
