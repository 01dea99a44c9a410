package lru

import (
	"context"
	"testing"
)

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{Size: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close(ctx)

	_, _ = p.Set(ctx, "a", []byte("1"), 1, 0)
	_, _ = p.Set(ctx, "b", []byte("2"), 1, 0)
	if _, ok, _ := p.Get(ctx, "a"); !ok { // touch a
		t.Fatalf("expected a present")
	}
	_, _ = p.Set(ctx, "c", []byte("3"), 1, 0)

	if _, ok, _ := p.Get(ctx, "b"); ok {
		t.Fatalf("expected b evicted")
	}
	if v, ok, _ := p.Get(ctx, "a"); !ok || string(v) != "1" {
		t.Fatalf("expected a kept, got ok=%v v=%q", ok, v)
	}
	if p.Len() != 2 {
		t.Fatalf("Len = %d, want 2", p.Len())
	}
}

func TestInvalidSize(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error for zero size")
	}
}

func TestStatsCountLookups(t *testing.T) {
	ctx := context.Background()
	p, _ := New(Config{Size: 4})
	_, _ = p.Set(ctx, "a", []byte("1"), 1, 0)
	_, _, _ = p.Get(ctx, "a")
	_, _, _ = p.Get(ctx, "a")
	_, _, _ = p.Get(ctx, "z")

	st, err := p.Stats(ctx)
	if err != nil || st.Entries != 1 || st.Hits != 2 || st.Misses != 1 {
		t.Fatalf("stats = %+v, %v", st, err)
	}
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	p, _ := New(Config{Size: 4})
	_, _ = p.Set(ctx, "a", []byte("1"), 1, 0)
	_, _ = p.Set(ctx, "b", []byte("2"), 1, 0)
	if err := p.Purge(ctx); err != nil {
		t.Fatal(err)
	}
	if p.Len() != 0 {
		t.Fatalf("Len = %d after purge", p.Len())
	}
}
