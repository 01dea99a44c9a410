package genstore

import (
	"context"
	"testing"
	"time"
)

func TestLocalBumpAndSnapshot(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	defer s.Close(ctx)

	if g, _ := s.Snapshot(ctx, "a"); g != 0 {
		t.Fatalf("missing key gen = %d, want 0", g)
	}
	if g, _ := s.Bump(ctx, "a"); g != 1 {
		t.Fatalf("first bump = %d, want 1", g)
	}
	m, err := s.BumpMany(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if m["a"] != 2 || m["b"] != 1 {
		t.Fatalf("BumpMany = %v", m)
	}
	snap, _ := s.SnapshotMany(ctx, []string{"a", "b", "c"})
	if snap["a"] != 2 || snap["b"] != 1 || snap["c"] != 0 {
		t.Fatalf("SnapshotMany = %v", snap)
	}
}

func TestLocalCleanupPrunesIdleKeys(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	defer s.Close(ctx)

	_, _ = s.Bump(ctx, "old")
	time.Sleep(20 * time.Millisecond)
	_, _ = s.Bump(ctx, "fresh")

	s.Cleanup(10 * time.Millisecond)

	if g, _ := s.Snapshot(ctx, "old"); g != 0 {
		t.Fatalf("old gen = %d, want pruned", g)
	}
	if g, _ := s.Snapshot(ctx, "fresh"); g != 1 {
		t.Fatalf("fresh gen = %d, want 1", g)
	}
}

func TestLocalCleanupLoopStops(t *testing.T) {
	s := NewLocal(time.Millisecond, time.Millisecond)
	_, _ = s.Bump(context.Background(), "k")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if g, _ := s.Snapshot(context.Background(), "k"); g == 0 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if g, _ := s.Snapshot(context.Background(), "k"); g != 0 {
		t.Fatalf("cleanup loop never pruned")
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}
