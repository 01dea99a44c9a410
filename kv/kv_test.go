package kv

import (
	"context"
	"testing"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	var s Memory
	if _, ok, err := s.Get(ctx, KeyToken); ok || err != nil {
		t.Fatalf("empty store returned ok=%v err=%v", ok, err)
	}
	_ = s.Set(ctx, KeyToken, "t1")
	if v, ok, _ := s.Get(ctx, KeyToken); !ok || v != "t1" {
		t.Fatalf("Get = %q, %v", v, ok)
	}
	_ = s.Delete(ctx, KeyToken)
	if _, ok, _ := s.Get(ctx, KeyToken); ok {
		t.Fatalf("key survived Delete")
	}
}
