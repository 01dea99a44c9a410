package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/dashsync/live"
)

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

func TestJoinPublishReceive(t *testing.T) {
	rdb := testClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	prefix := "dashsync:test:" + time.Now().Format("150405.000000") + ":"
	tr := New(ctx, rdb, Options{Prefix: prefix})
	defer tr.Close()

	if err := tr.Join(ctx, "event-5"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := tr.Publish(ctx, "event-5", live.EventRefreshLeaderboard, map[string]int{"roundNo": 1}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case ev := <-tr.Events():
		if ev.Room != "event-5" || ev.Name != live.EventRefreshLeaderboard || string(ev.Data) != `{"roundNo":1}` {
			t.Fatalf("event = %+v", ev)
		}
	case <-ctx.Done():
		t.Fatalf("no event received")
	}
}
