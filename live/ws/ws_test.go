package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/unkn0wn-root/dashsync/live"
)

// echoRooms answers every join-room with a ROLE_UPDATED push to that room.
func echoRooms(t *testing.T, gotAuth chan<- string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()
		for {
			var env Envelope
			if err := wsjson.Read(ctx, conn, &env); err != nil {
				return
			}
			if env.Event != live.MsgJoinRoom {
				continue
			}
			out := Envelope{Event: live.EventRoleUpdated, Room: env.Room, Data: []byte(`{"roles":["ADMIN"]}`)}
			if err := wsjson.Write(ctx, conn, out); err != nil {
				return
			}
		}
	}
}

func TestJoinAndReceive(t *testing.T) {
	auth := make(chan string, 1)
	srv := httptest.NewServer(echoRooms(t, auth))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	tr, err := Dial(ctx, url, Options{Header: http.Header{"Authorization": {"Bearer tok"}}})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer tr.Close()

	if got := <-auth; got != "Bearer tok" {
		t.Fatalf("auth header = %q", got)
	}
	if err := tr.Join(ctx, "user-42"); err != nil {
		t.Fatalf("Join: %v", err)
	}

	select {
	case ev := <-tr.Events():
		if ev.Room != "user-42" || ev.Name != live.EventRoleUpdated || string(ev.Data) != `{"roles":["ADMIN"]}` {
			t.Fatalf("event = %+v", ev)
		}
	case <-ctx.Done():
		t.Fatalf("no event received")
	}
}

func TestCloseEndsEvents(t *testing.T) {
	auth := make(chan string, 1)
	srv := httptest.NewServer(echoRooms(t, auth))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tr, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	_ = tr.Close()
	select {
	case _, ok := <-tr.Events():
		if ok {
			t.Fatalf("unexpected event after close")
		}
	case <-ctx.Done():
		t.Fatalf("events channel not closed")
	}
}

// flood pushes n events as soon as the socket opens and keeps reading so
// close frames are answered.
func flood(t *testing.T, n int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()
		go func() {
			for i := 0; i < n; i++ {
				ev := Envelope{Event: live.EventRoleUpdated, Room: "user-42"}
				if err := wsjson.Write(ctx, conn, ev); err != nil {
					return
				}
			}
		}()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}
}

func TestCloseWithUndrainedEvents(t *testing.T) {
	srv := httptest.NewServer(flood(t, 16))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tr, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), Options{Buffer: 1})
	if err != nil {
		t.Fatal(err)
	}
	// Let the buffer fill so the read loop blocks on delivery.
	deadline := time.Now().Add(2 * time.Second)
	for len(tr.events) < cap(tr.events) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(tr.events) != cap(tr.events) {
		t.Fatalf("buffer never filled")
	}

	start := time.Now()
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if d := time.Since(start); d > 2*time.Second {
		t.Fatalf("Close took %v", d)
	}
	select {
	case <-tr.done:
	default:
		t.Fatalf("read loop still running")
	}
}
