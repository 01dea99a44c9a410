package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/unkn0wn-root/dashsync/kv"
)

func TestStorePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "dashsync.db")

	s, err := Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, kv.KeyToken, "abc"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, kv.KeyActiveTab, "Users"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, kv.KeyActiveTab); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if v, ok, err := s.Get(ctx, kv.KeyToken); err != nil || !ok || v != "abc" {
		t.Fatalf("Get(token) = %q, %v, %v", v, ok, err)
	}
	if _, ok, _ := s.Get(ctx, kv.KeyActiveTab); ok {
		t.Fatalf("deleted key still present")
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open("", 0); err != ErrEmptyPath {
		t.Fatalf("err = %v", err)
	}
}
