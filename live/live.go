// Package live turns server push events into cache invalidations.
//
// A Bridge owns one Transport. Callers subscribe to rooms with Bindings that map
// event names to cache keys; when an event arrives for a room, every key bound to
// it by a live subscription is invalidated once. Rooms are reference counted, so
// two views watching the same room share one join-room.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/unkn0wn-root/dashsync"
)

var (
	ErrEmptyRoom = errors.New("live: empty room")
	ErrClosed    = errors.New("live: bridge closed")
)

// State of a room on the transport.
type State uint8

const (
	Disconnected State = iota
	Subscribing
	Subscribed
	Unsubscribing
)

func (s State) String() string {
	switch s {
	case Subscribing:
		return "subscribing"
	case Subscribed:
		return "subscribed"
	case Unsubscribing:
		return "unsubscribing"
	default:
		return "disconnected"
	}
}

// Event is one server push. Room is empty for broadcasts.
type Event struct {
	Room string
	Name string
	Data json.RawMessage
}

// Transport is the push connection. Join and Leave send join-room/leave-room.
// Events is closed when the connection ends.
type Transport interface {
	Join(ctx context.Context, room string) error
	Leave(ctx context.Context, room string) error
	Events() <-chan Event
	Close() error
}

// Invalidator is satisfied by *dashsync.Cache.
type Invalidator interface {
	Invalidate(ctx context.Context, pattern dashsync.Key) (int, error)
}

// Bindings maps event names to the keys (or key prefixes) they make stale.
type Bindings map[string][]dashsync.Key

type Options struct {
	Logger dashsync.Logger
	// OnEvent runs after the invalidations of an event addressed to a live room
	// have settled. It runs on the dispatch goroutine.
	OnEvent func(Event)
}

type room struct {
	name    string
	state   State
	handles map[*Subscription]struct{}
	ready   chan struct{} // closed once the join resolved
	joinErr error
	left    chan struct{} // closed once the leave resolved
}

type Bridge struct {
	inv     Invalidator
	t       Transport
	log     dashsync.Logger
	onEvent func(Event)

	mu        sync.Mutex
	rooms     map[string]*room
	listeners map[uint64]func(Event)
	nextID    uint64
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New starts dispatching events from t into inv.
func New(inv Invalidator, t Transport, opts Options) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		inv:       inv,
		t:         t,
		log:       opts.Logger,
		onEvent:   opts.OnEvent,
		rooms:     make(map[string]*room),
		listeners: make(map[uint64]func(Event)),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	if b.log == nil {
		b.log = dashsync.NopLogger{}
	}
	go b.loop()
	return b
}

// Subscription is a handle on a room. Close it when the consumer goes away;
// the bridge never resubscribes a closed handle.
type Subscription struct {
	b        *Bridge
	room     string
	bindings Bindings
	once     sync.Once
}

func (s *Subscription) Room() string { return s.room }

// Subscribe joins room (once per room) and registers bindings.
func (b *Bridge) Subscribe(ctx context.Context, roomName string, bindings Bindings) (*Subscription, error) {
	if roomName == "" {
		return nil, ErrEmptyRoom
	}
	h := &Subscription{b: b, room: roomName, bindings: cloneBindings(bindings)}

	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, ErrClosed
		}
		r := b.rooms[roomName]
		switch {
		case r == nil:
			r = &room{
				name:    roomName,
				state:   Subscribing,
				handles: map[*Subscription]struct{}{h: {}},
				ready:   make(chan struct{}),
			}
			b.rooms[roomName] = r
			b.mu.Unlock()
			if err := b.join(ctx, r); err != nil {
				return nil, err
			}
			return h, nil

		case r.state == Unsubscribing:
			left := r.left
			b.mu.Unlock()
			select {
			case <-left:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}

		default:
			r.handles[h] = struct{}{}
			ready := r.ready
			b.mu.Unlock()
			select {
			case <-ready:
			case <-ctx.Done():
				h.detach()
				return nil, ctx.Err()
			}
			if r.joinErr != nil {
				return nil, r.joinErr
			}
			return h, nil
		}
	}
}

func (b *Bridge) join(ctx context.Context, r *room) error {
	err := b.t.Join(ctx, r.name)

	b.mu.Lock()
	if err != nil {
		r.joinErr = fmt.Errorf("live: join %s: %w", r.name, err)
		r.state = Disconnected
		if b.rooms[r.name] == r {
			delete(b.rooms, r.name)
		}
		close(r.ready)
		b.mu.Unlock()
		b.log.Warn("join failed", dashsync.Fields{"room": r.name, "err": err})
		return r.joinErr
	}
	r.state = Subscribed
	close(r.ready)
	orphan := len(r.handles) == 0
	if orphan {
		r.state = Unsubscribing
		r.left = make(chan struct{})
	}
	b.mu.Unlock()
	b.log.Debug("room joined", dashsync.Fields{"room": r.name})

	if orphan {
		b.leave(r)
	}
	return nil
}

func (b *Bridge) leave(r *room) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(b.ctx), leaveTimeout)
	err := b.t.Leave(ctx, r.name)
	cancel()
	if err != nil {
		b.log.Warn("leave failed", dashsync.Fields{"room": r.name, "err": err})
	}

	b.mu.Lock()
	r.state = Disconnected
	if b.rooms[r.name] == r {
		delete(b.rooms, r.name)
	}
	close(r.left)
	b.mu.Unlock()
	b.log.Debug("room left", dashsync.Fields{"room": r.name})
}

// Close releases the handle; the last handle of a room sends leave-room.
// Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.detach)
}

func (s *Subscription) detach() {
	b := s.b
	b.mu.Lock()
	r := b.rooms[s.room]
	if r == nil {
		b.mu.Unlock()
		return
	}
	if _, ok := r.handles[s]; !ok {
		b.mu.Unlock()
		return
	}
	delete(r.handles, s)
	last := len(r.handles) == 0 && r.state == Subscribed && !b.closed
	if last {
		r.state = Unsubscribing
		r.left = make(chan struct{})
	}
	b.mu.Unlock()

	if last {
		b.leave(r)
	}
}

// State reports the transport state of room.
func (b *Bridge) State(roomName string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r := b.rooms[roomName]; r != nil {
		return r.state
	}
	return Disconnected
}

// Close stops dispatching and closes the transport. Open handles become inert.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	err := b.t.Close()
	<-b.done
	return err
}

func (b *Bridge) loop() {
	defer close(b.done)
	events := b.t.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				b.log.Info("push transport closed", nil)
				return
			}
			b.dispatch(ev)
		case <-b.ctx.Done():
			return
		}
	}
}

// dispatch invalidates the union of keys bound to ev across live handles.
func (b *Bridge) dispatch(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event dispatch panicked", dashsync.Fields{"event": ev.Name, "room": ev.Room, "panic": r})
		}
	}()

	keys, live := b.targets(ev)
	if !live {
		b.log.Debug("event for room without subscribers", dashsync.Fields{"event": ev.Name, "room": ev.Room})
		return
	}
	for _, k := range keys {
		if _, err := b.inv.Invalidate(b.ctx, k); err != nil {
			b.log.Warn("invalidate from event failed",
				dashsync.Fields{"event": ev.Name, "room": ev.Room, "key": k.String(), "err": err})
		}
	}
	b.log.Debug("event dispatched", dashsync.Fields{"event": ev.Name, "room": ev.Room, "keys": len(keys)})
	if b.onEvent != nil {
		b.onEvent(ev)
	}
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.listeners))
	for _, f := range b.listeners {
		fns = append(fns, f)
	}
	b.mu.Unlock()
	for _, f := range fns {
		f(ev)
	}
}

// Listen registers f like Options.OnEvent for a consumer that arrives after
// the bridge was built. The returned func unregisters it.
func (b *Bridge) Listen(f func(Event)) (stop func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[id] = f
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

func (b *Bridge) targets(ev Event) ([]dashsync.Key, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var rooms []*room
	if ev.Room == "" {
		for _, r := range b.rooms {
			rooms = append(rooms, r)
		}
	} else if r := b.rooms[ev.Room]; r != nil {
		rooms = append(rooms, r)
	}

	seen := make(map[string]struct{})
	var keys []dashsync.Key
	live := false
	for _, r := range rooms {
		if r.state != Subscribed || len(r.handles) == 0 {
			continue
		}
		live = true
		for h := range r.handles {
			for _, k := range h.bindings[ev.Name] {
				if _, dup := seen[k.ID()]; dup {
					continue
				}
				seen[k.ID()] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	return keys, live
}

func cloneBindings(in Bindings) Bindings {
	out := make(Bindings, len(in))
	for ev, ks := range in {
		out[ev] = append([]dashsync.Key(nil), ks...)
	}
	return out
}
