package dashsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/unkn0wn-root/dashsync/codec"
)

type user struct {
	ID    int      `json:"id"`
	Roles []string `json:"roles"`
}

type notes struct {
	mu  sync.Mutex
	got []Notification
}

func (n *notes) Notify(x Notification) {
	n.mu.Lock()
	n.got = append(n.got, x)
	n.mu.Unlock()
}

func (n *notes) all() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.got...)
}

type serverErr struct{ msg string }

func (e serverErr) Error() string       { return "server: " + e.msg }
func (e serverErr) UserMessage() string { return e.msg }

// fakeUsers is a tiny in-memory backend for the users list.
type fakeUsers struct {
	mu    sync.Mutex
	users map[int][]string
	reads atomic.Int32
}

func (f *fakeUsers) list(context.Context) ([]user, error) {
	f.reads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]user, 0, len(f.users))
	for id := 1; id <= len(f.users); id++ {
		out = append(out, user{ID: id, Roles: f.users[id]})
	}
	return out, nil
}

func TestQueryTypedRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, nil)
	q := Query[user]{
		Key:   K("auth-me"),
		Codec: codec.CBOR[user]{},
		Load: func(context.Context) (user, error) {
			return user{ID: 42, Roles: []string{"ADMIN"}}, nil
		},
	}
	r, err := q.Fetch(ctx, c, true)
	if err != nil {
		t.Fatal(err)
	}
	if !r.HasData || r.Data.ID != 42 || r.Status != StatusSuccess {
		t.Fatalf("result = %+v", r)
	}
	got, ok := q.Get(ctx, c)
	if !ok || got.Data.Roles[0] != "ADMIN" {
		t.Fatalf("Get = %+v", got)
	}
}

func TestQueryUndecodablePayloadSelfHeals(t *testing.T) {
	ctx := context.Background()
	h := &recHooks{}
	c, mp := newTestCache(t, func(o *Options) { o.Hooks = h })
	k := K("admin-settings")
	_ = c.Fetch(ctx, k, constLoader("not json", nil), true)

	q := Query[user]{Key: k}
	r, _ := q.Get(ctx, c)
	if r.HasData || !r.Stale {
		t.Fatalf("result = %+v", r)
	}
	if mp.len() != 0 || len(h.healed) != 1 || h.healed[0] != "value_decode" {
		t.Fatalf("payload not healed: len=%d healed=%v", mp.len(), h.healed)
	}
}

func TestQuerySubscribeDeliversTypedChanges(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, nil)
	q := Query[[]string]{
		Key:  K("admin-variables"),
		Load: func(context.Context) ([]string, error) { return []string{"a", "b"}, nil },
	}
	var last Result[[]string]
	sub := q.Subscribe(c, func(r Result[[]string]) { last = r })
	defer sub.Close()
	if err := sub.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if !last.HasData || len(last.Data) != 2 || last.Status != StatusSuccess {
		t.Fatalf("last = %+v", last)
	}
}

// Updating a user's roles refetches the users list with the same search term.
func TestMutationInvalidatesAfterSuccess(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, nil)
	backend := &fakeUsers{users: map[int][]string{1: {"ADMIN"}, 2: nil, 3: {"JUDGE"}}}
	n := &notes{}

	list := Query[[]user]{Key: K("admin-users", ""), Load: backend.list}
	sub := list.Subscribe(c, nil)
	defer sub.Close()
	if err := sub.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if r, _ := list.Get(ctx, c); len(r.Data) != 3 {
		t.Fatalf("initial list = %+v", r)
	}

	type rolesReq struct {
		UserID int
		Roles  []string
	}
	m, err := NewMutation(c, n, MutationDef[rolesReq, user]{
		Name: "update-user-roles",
		Do: func(_ context.Context, p rolesReq) (user, error) {
			backend.mu.Lock()
			backend.users[p.UserID] = p.Roles
			backend.mu.Unlock()
			return user{ID: p.UserID, Roles: p.Roles}, nil
		},
		Invalidates: []Key{K("admin-users")},
		Success:     "Roles updated",
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Mutate(ctx, rolesReq{UserID: 2, Roles: []string{"ADMIN"}}); err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if backend.reads.Load() != 2 {
		t.Fatalf("list reads = %d, want 2", backend.reads.Load())
	}
	r, _ := list.Get(ctx, c)
	if r.Stale || len(r.Data) != 3 || len(r.Data[1].Roles) != 1 || r.Data[1].Roles[0] != "ADMIN" {
		t.Fatalf("list after mutation = %+v", r)
	}
	if m.Status() != MutationSuccess {
		t.Fatalf("status = %v", m.Status())
	}
	last := m.Last()
	if last.Name != "update-user-roles" || len(last.Targets) != 1 || last.Payload.UserID != 2 {
		t.Fatalf("last = %+v", last)
	}
	got := n.all()
	if len(got) != 1 || got[0].Level != LevelSuccess || got[0].Message != "Roles updated" {
		t.Fatalf("notifications = %+v", got)
	}
}

func TestMutationFailureLeavesCacheAlone(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, nil)
	n := &notes{}
	var calls atomic.Int32

	sub := c.Subscribe(K("admin-settings"), counterLoader(&calls))
	defer sub.Close()
	_ = sub.Sync(ctx)

	m := MustMutation(c, n, MutationDef[string, struct{}]{
		Name:        "update-setting",
		Do:          func(context.Context, string) (struct{}, error) { return struct{}{}, serverErr{"Setting is locked"} },
		Invalidates: []Key{K("admin-settings")},
		Failure:     "Failed to update setting",
	})
	if _, err := m.Mutate(ctx, "isRegistrationOpen"); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("failed mutation triggered refetch")
	}
	if e := sub.Entry(ctx); e.Stale {
		t.Fatalf("failed mutation invalidated entry")
	}
	got := n.all()
	if len(got) != 1 || got[0].Level != LevelError || got[0].Message != "Setting is locked" {
		t.Fatalf("notifications = %+v", got)
	}
	if m.Status() != MutationError || m.Last().Err == nil {
		t.Fatalf("status = %v", m.Status())
	}
}

func TestMutationUnauthorizedResets(t *testing.T) {
	ctx := context.Background()
	var resets atomic.Int32
	c, mp := newTestCache(t, func(o *Options) { o.OnUnauthorized = func() { resets.Add(1) } })
	_ = c.Fetch(ctx, K("admin-settings"), constLoader("s", nil), true)

	m := MustMutation(c, nil, MutationDef[int, int]{
		Name:         "logout-only",
		Do:           func(context.Context, int) (int, error) { return 0, ErrUnauthorized },
		NoInvalidate: true,
	})
	_, _ = m.Mutate(ctx, 1)
	if resets.Load() != 1 || mp.len() != 0 {
		t.Fatalf("resets=%d payloads=%d", resets.Load(), mp.len())
	}
}

func TestMutationDerivedTargets(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, nil)
	for _, k := range []Key{K("organiser-event", 1), K("organiser-event", 2)} {
		_ = c.Fetch(ctx, k, constLoader("x", nil), true)
	}
	m := MustMutation(c, nil, MutationDef[int64, struct{}]{
		Name: "create-round",
		Do:   func(context.Context, int64) (struct{}, error) { return struct{}{}, nil },
		InvalidatesFor: func(eventID int64, _ struct{}) []Key {
			return []Key{K("organiser-event", eventID), K("organiser-event", eventID)}
		},
	})
	if _, err := m.Mutate(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if e, _ := c.Get(ctx, K("organiser-event", 1)); e.Stale {
		t.Fatalf("unrelated event invalidated")
	}
	if e, _ := c.Get(ctx, K("organiser-event", 2)); !e.Stale {
		t.Fatalf("target not invalidated")
	}
	if ts := m.Last().Targets; len(ts) != 1 {
		t.Fatalf("targets not deduplicated: %v", ts)
	}
}

func TestMutationInvalidatesEvenIfCallerCancelled(t *testing.T) {
	c, _ := newTestCache(t, nil)
	bg := context.Background()
	_ = c.Fetch(bg, K("branches"), constLoader("x", nil), true)

	ctx, cancel := context.WithCancel(bg)
	m := MustMutation(c, nil, MutationDef[int, int]{
		Name: "assign-rep",
		Do: func(context.Context, int) (int, error) {
			cancel()
			return 1, nil
		},
		Invalidates: []Key{K("branches")},
	})
	if _, err := m.Mutate(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if e, _ := c.Get(bg, K("branches")); !e.Stale {
		t.Fatalf("invalidation skipped after cancellation")
	}
}

func TestNewMutationValidatesTargets(t *testing.T) {
	c, _ := newTestCache(t, nil)
	do := func(context.Context, int) (int, error) { return 0, nil }

	if _, err := NewMutation(c, nil, MutationDef[int, int]{Name: "x", Do: do}); err == nil {
		t.Fatalf("expected error for missing targets")
	}
	if _, err := NewMutation(c, nil, MutationDef[int, int]{
		Name: "x", Do: do, NoInvalidate: true, Invalidates: []Key{K("a")},
	}); err == nil {
		t.Fatalf("expected error for contradictory definition")
	}
	if _, err := NewMutation(c, nil, MutationDef[int, int]{Name: "x", NoInvalidate: true}); err == nil {
		t.Fatalf("expected error for missing Do")
	}
	if _, err := NewMutation(c, nil, MutationDef[int, int]{Name: "x", Do: do, NoInvalidate: true}); err != nil {
		t.Fatalf("NoInvalidate definition rejected: %v", err)
	}
}

func TestErrorMessage(t *testing.T) {
	cases := []struct {
		err      error
		fallback string
		want     string
	}{
		{serverErr{"Event is closed"}, "Failed", "Event is closed"},
		{serverErr{""}, "Failed to save variable", "Failed to save variable"},
		{errors.New("dial tcp: refused"), "Failed to add organiser", "Failed to add organiser"},
		{errors.New("dial tcp: refused"), "", "dial tcp: refused"},
		{ErrUnauthorized, "Failed", "Unauthorized"},
	}
	for _, tc := range cases {
		if got := ErrorMessage(tc.err, tc.fallback); got != tc.want {
			t.Errorf("ErrorMessage(%v, %q) = %q, want %q", tc.err, tc.fallback, got, tc.want)
		}
	}
}
