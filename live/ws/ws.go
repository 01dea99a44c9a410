// Package ws is a live.Transport over a WebSocket carrying JSON envelopes:
//
//	client -> server  {"event":"join-room","room":"user-42"}
//	server -> client  {"event":"ROLE_UPDATED","room":"user-42","data":{...}}
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/unkn0wn-root/dashsync"
	"github.com/unkn0wn-root/dashsync/live"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Room  string          `json:"room,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Options struct {
	Header     http.Header // e.g. Authorization
	HTTPClient *http.Client
	Buffer     int // pending events; 0 => 64
	ReadLimit  int64
	Logger     dashsync.Logger
}

type Transport struct {
	conn   *websocket.Conn
	events chan live.Event
	log    dashsync.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

var _ live.Transport = (*Transport)(nil)

// Dial connects to url and starts reading events.
func Dial(ctx context.Context, url string, opts Options) (*Transport, error) {
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: opts.Header,
		HTTPClient: opts.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	if opts.ReadLimit > 0 {
		conn.SetReadLimit(opts.ReadLimit)
	}
	buf := opts.Buffer
	if buf <= 0 {
		buf = 64
	}
	rctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		conn:   conn,
		events: make(chan live.Event, buf),
		log:    opts.Logger,
		ctx:    rctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if t.log == nil {
		t.log = dashsync.NopLogger{}
	}
	go t.readLoop()
	return t, nil
}

func (t *Transport) Join(ctx context.Context, room string) error {
	return wsjson.Write(ctx, t.conn, Envelope{Event: live.MsgJoinRoom, Room: room})
}

func (t *Transport) Leave(ctx context.Context, room string) error {
	return wsjson.Write(ctx, t.conn, Envelope{Event: live.MsgLeaveRoom, Room: room})
}

func (t *Transport) Events() <-chan live.Event { return t.events }

func (t *Transport) readLoop() {
	defer close(t.done)
	defer close(t.events)
	for {
		var env Envelope
		if err := wsjson.Read(t.ctx, t.conn, &env); err != nil {
			if t.ctx.Err() == nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				t.log.Warn("websocket read failed", dashsync.Fields{"err": err})
			}
			return
		}
		if env.Event == "" {
			continue
		}
		select {
		case t.events <- live.Event{Room: env.Room, Name: env.Event, Data: env.Data}:
		case <-t.ctx.Done():
			return
		}
	}
}

// Close stops the read loop before the close handshake, so an undrained
// Events channel cannot hold it up.
func (t *Transport) Close() error {
	var err error
	t.once.Do(func() {
		t.cancel()
		<-t.done
		err = t.conn.Close(websocket.StatusNormalClosure, "bye")
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	})
	return err
}
