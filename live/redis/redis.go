// Package redis is a live.Transport over Redis Pub/Sub. Each room is the
// channel <prefix><room>; joining a room subscribes to it. Payloads are JSON
// objects {"event": "...", "data": ...}.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/dashsync"
	"github.com/unkn0wn-root/dashsync/live"
)

const DefaultPrefix = "dashsync:room:"

type payload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Options struct {
	Prefix string // "" => DefaultPrefix
	Buffer int    // 0 => 64
	Logger dashsync.Logger
}

type Transport struct {
	rdb    goredis.UniversalClient
	ps     *goredis.PubSub
	prefix string
	log    dashsync.Logger
	events chan live.Event

	once sync.Once
	stop chan struct{}
	done chan struct{}
}

var _ live.Transport = (*Transport)(nil)

// New opens a Pub/Sub connection on rdb. The client stays owned by the caller.
func New(ctx context.Context, rdb goredis.UniversalClient, opts Options) *Transport {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	t := &Transport{
		rdb:    rdb,
		ps:     rdb.Subscribe(ctx),
		prefix: opts.Prefix,
		log:    opts.Logger,
		events: make(chan live.Event, opts.Buffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if t.log == nil {
		t.log = dashsync.NopLogger{}
	}
	go t.loop()
	return t
}

func (t *Transport) channel(room string) string { return t.prefix + room }

func (t *Transport) Join(ctx context.Context, room string) error {
	return t.ps.Subscribe(ctx, t.channel(room))
}

func (t *Transport) Leave(ctx context.Context, room string) error {
	return t.ps.Unsubscribe(ctx, t.channel(room))
}

func (t *Transport) Events() <-chan live.Event { return t.events }

// Publish pushes an event to a room. Used by servers and tests.
func (t *Transport) Publish(ctx context.Context, room, event string, data any) error {
	return Publish(ctx, t.rdb, t.prefix, room, event, data)
}

// Publish pushes an event to room through rdb.
func Publish(ctx context.Context, rdb goredis.UniversalClient, prefix, room, event string, data any) error {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	p := payload{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		p.Data = raw
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return rdb.Publish(ctx, prefix+room, b).Err()
}

func (t *Transport) loop() {
	defer close(t.done)
	defer close(t.events)
	for msg := range t.ps.Channel() {
		room, ok := strings.CutPrefix(msg.Channel, t.prefix)
		if !ok {
			continue
		}
		var p payload
		if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil || p.Event == "" {
			t.log.Warn("dropping malformed push", dashsync.Fields{"channel": msg.Channel, "err": err})
			continue
		}
		select {
		case t.events <- live.Event{Room: room, Name: p.Event, Data: p.Data}:
		case <-t.stop:
			return
		}
	}
}

// Close ends the Pub/Sub connection and closes Events.
func (t *Transport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.stop)
		err = t.ps.Close()
		<-t.done
		if errors.Is(err, goredis.ErrClosed) {
			err = nil
		}
	})
	return err
}
