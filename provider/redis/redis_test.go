package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/dashsync"
)

func TestNewNeedsClient(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNilClient) {
		t.Fatalf("err = %v", err)
	}
}

func TestMatchDefaults(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()

	p, err := New(Config{Client: rdb})
	if err != nil {
		t.Fatal(err)
	}
	if p.match != "*" {
		t.Fatalf("match = %q", p.match)
	}
	p, _ = New(Config{Client: rdb, Match: dashsync.StoragePattern("")})
	if p.match != "q:dashsync:*" {
		t.Fatalf("match = %q", p.match)
	}
}

// A borrowed client stays usable after the provider closes.
func TestCloseLeavesBorrowedClient(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	p, _ := New(Config{Client: rdb})
	if err := p.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := rdb.Close(); err != nil {
		t.Fatalf("client already closed: %v", err)
	}

	owned := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	p, _ = New(Config{Client: owned, Owned: true})
	if err := p.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(context.Background()); err != nil {
		t.Fatalf("second close = %v", err)
	}
}

// Needs a reachable server: DASHSYNC_TEST_REDIS=localhost:6379
func testClient(t *testing.T) goredis.UniversalClient {
	t.Helper()
	addr := os.Getenv("DASHSYNC_TEST_REDIS")
	if addr == "" {
		t.Skip("DASHSYNC_TEST_REDIS not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRoundTripStatsPurge(t *testing.T) {
	ctx := context.Background()
	ns := fmt.Sprintf("test-%d", time.Now().UnixNano())
	p, err := New(Config{Client: testClient(t), Match: dashsync.StoragePattern(ns)})
	if err != nil {
		t.Fatal(err)
	}
	key := func(s string) string { return "q:" + ns + ":" + s }

	if _, ok, err := p.Get(ctx, key("a")); ok || err != nil {
		t.Fatalf("Get(missing) = %v, %v", ok, err)
	}
	for _, k := range []string{"a", "b"} {
		if ok, err := p.Set(ctx, key(k), []byte(k), 1, time.Minute); !ok || err != nil {
			t.Fatalf("Set(%s) = %v, %v", k, ok, err)
		}
	}
	if v, ok, _ := p.Get(ctx, key("a")); !ok || string(v) != "a" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}

	st, err := p.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Entries != 2 || st.Hits != 1 || st.Misses != 1 {
		t.Fatalf("stats = %+v", st)
	}

	if err := p.Purge(ctx); err != nil {
		t.Fatal(err)
	}
	if st, _ := p.Stats(ctx); st.Entries != 0 {
		t.Fatalf("entries after purge = %d", st.Entries)
	}
}
