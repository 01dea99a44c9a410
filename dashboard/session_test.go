package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/dashsync"
	"github.com/unkn0wn-root/dashsync/api"
	"github.com/unkn0wn-root/dashsync/internal/apitest"
	"github.com/unkn0wn-root/dashsync/kv"
	"github.com/unkn0wn-root/dashsync/live"
	"github.com/unkn0wn-root/dashsync/provider/lru"
	"github.com/unkn0wn-root/dashsync/stepup"
)

type notes struct {
	mu  sync.Mutex
	got []dashsync.Notification
}

func (n *notes) Notify(x dashsync.Notification) {
	n.mu.Lock()
	n.got = append(n.got, x)
	n.mu.Unlock()
}

func (n *notes) has(level dashsync.Level, msg string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, x := range n.got {
		if x.Level == level && x.Message == msg {
			return true
		}
	}
	return false
}

type fakeTransport struct {
	mu     sync.Mutex
	joined map[string]int
	events chan live.Event
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{joined: map[string]int{}, events: make(chan live.Event, 8)}
}

func (f *fakeTransport) Join(_ context.Context, room string) error {
	f.mu.Lock()
	f.joined[room]++
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Leave(_ context.Context, room string) error {
	f.mu.Lock()
	f.joined[room]--
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Events() <-chan live.Event { return f.events }
func (f *fakeTransport) Close() error              { return nil }

func (f *fakeTransport) in(room string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.joined[room] > 0
}

type env struct {
	backend *apitest.Backend
	client  *api.Client
	store   *kv.Memory
	cache   *dashsync.Cache
	notes   *notes
	ft      *fakeTransport
	bridge  *live.Bridge
}

func newEnv(t *testing.T, withBridge bool) *env {
	t.Helper()
	e := &env{backend: apitest.New(t), store: kv.NewMemory(), notes: &notes{}}
	_ = e.store.Set(context.Background(), kv.KeyToken, apitest.Token)

	c, err := api.New(api.Options{BaseURL: e.backend.URL, Store: e.store})
	if err != nil {
		t.Fatal(err)
	}
	e.client = c

	p, err := lru.New(lru.Config{Size: 256})
	if err != nil {
		t.Fatal(err)
	}
	e.cache, err = dashsync.New(dashsync.Options{Provider: p})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.cache.Close(context.Background()) })

	if withBridge {
		e.ft = newFakeTransport()
		e.bridge = live.New(e.cache, e.ft, live.Options{})
		t.Cleanup(func() { _ = e.bridge.Close() })
	}
	return e
}

func (e *env) open(t *testing.T) *Session {
	t.Helper()
	s, err := Open(context.Background(), Options{
		API:      e.client,
		Cache:    e.cache,
		Bridge:   e.bridge,
		Store:    e.store,
		Notifier: e.notes,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOpenRestoresStoredTab(t *testing.T) {
	e := newEnv(t, false)
	_ = e.store.Set(context.Background(), kv.KeyActiveTab, string(TabUsers))
	s := e.open(t)

	if s.ActiveTab() != TabUsers {
		t.Fatalf("active = %q", s.ActiveTab())
	}
	if e.backend.Hits("users") != 2 || e.backend.Hits("settings") != 0 {
		t.Fatalf("users hits=%d settings hits=%d", e.backend.Hits("users"), e.backend.Hits("settings"))
	}
	if s.User().ID != 42 || !s.Access().Admin {
		t.Fatalf("user = %+v", s.User())
	}
}

func TestOpenFallsBackOnUnknownTab(t *testing.T) {
	e := newEnv(t, false)
	_ = e.store.Set(context.Background(), kv.KeyActiveTab, "Billing")
	s := e.open(t)

	if s.ActiveTab() != TabSettings {
		t.Fatalf("active = %q", s.ActiveTab())
	}
	if v, _, _ := e.store.Get(context.Background(), kv.KeyActiveTab); v != string(TabSettings) {
		t.Fatalf("persisted tab = %q", v)
	}
	if e.backend.Hits("settings") != 1 {
		t.Fatalf("settings not loaded")
	}
}

func TestOpenWithoutTokenSendsNothing(t *testing.T) {
	e := newEnv(t, false)
	_ = e.store.Delete(context.Background(), kv.KeyToken)
	_, err := Open(context.Background(), Options{API: e.client, Cache: e.cache, Store: e.store})
	if !errors.Is(err, dashsync.ErrUnauthorized) {
		t.Fatalf("err = %v", err)
	}
	if e.backend.Hits("me") != 0 {
		t.Fatalf("auth/me requested without a token")
	}
}

func TestOpenExpiredSession(t *testing.T) {
	e := newEnv(t, false)
	_ = e.store.Set(context.Background(), kv.KeyToken, "stale")
	_, err := Open(context.Background(), Options{API: e.client, Cache: e.cache, Store: e.store, Notifier: e.notes})
	if !errors.Is(err, dashsync.ErrUnauthorized) {
		t.Fatalf("err = %v", err)
	}
	if !e.notes.has(dashsync.LevelError, MsgSessionExpired) {
		t.Fatalf("no session expired notification")
	}
}

func TestOpenWithoutRole(t *testing.T) {
	e := newEnv(t, false)
	e.backend.SetMe(api.User{ID: 42, Email: "ada@example.com"})
	_, err := Open(context.Background(), Options{API: e.client, Cache: e.cache, Store: e.store, Notifier: e.notes})
	if !errors.Is(err, ErrNoAccess) {
		t.Fatalf("err = %v", err)
	}
	if !e.notes.has(dashsync.LevelError, MsgAccessRequired) {
		t.Fatalf("no access notification")
	}
}

func TestTabQueriesWaitForVisit(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	s := e.open(t)

	if e.backend.Hits("variables") != 0 {
		t.Fatalf("unvisited tab loaded")
	}
	if err := s.Visit(ctx, TabVariables); err != nil {
		t.Fatal(err)
	}
	if e.backend.Hits("variables") != 1 {
		t.Fatalf("variables hits = %d", e.backend.Hits("variables"))
	}
	if err := s.Visit(ctx, TabJudging); !errors.Is(err, ErrTabNotAllowed) {
		t.Fatalf("Visit(Judging) = %v", err)
	}
	if s.ActiveTab() != TabVariables {
		t.Fatalf("active = %q", s.ActiveTab())
	}
}

// Saving a user's roles refetches the user list under the current search.
func TestUpdateRolesRefetchesUserList(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	s := e.open(t)
	if err := s.Visit(ctx, TabUsers); err != nil {
		t.Fatal(err)
	}
	if err := s.SearchUsers(ctx, "grace"); err != nil {
		t.Fatal(err)
	}
	before := e.backend.Hits("users")

	if _, err := s.Mutations().UpdateUserRoles.Mutate(ctx, api.UpdateRoles{UserID: 7, Roles: []string{"JUDGE"}}); err != nil {
		t.Fatal(err)
	}
	if got := e.backend.Hits("users") - before; got != 2 {
		t.Fatalf("user list refetches = %d, want 2", got)
	}
	r, _ := s.Catalog().Users("grace").Get(ctx, e.cache)
	if r.Stale || len(r.Data.Users) != 1 || r.Data.Users[0].Roles[0] != "JUDGE" {
		t.Fatalf("users = %+v", r)
	}
	if !e.notes.has(dashsync.LevelSuccess, "Roles updated") {
		t.Fatalf("no success notification")
	}
}

func TestGuardedSettingNeedsMasterKey(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	s := e.open(t)

	if _, err := s.UpdateSetting(api.UpdateSetting{Key: "isRegistrationOpen", Value: false}); err != nil {
		t.Fatal(err)
	}
	if e.backend.Hits("update-setting") != 0 {
		t.Fatalf("write sent before verification")
	}
	if ok, err := s.SubmitMasterKey(ctx, "guess"); ok || err != nil {
		t.Fatalf("Submit(guess) = %v, %v", ok, err)
	}
	if !e.backend.Setting("isRegistrationOpen") || !e.notes.has(dashsync.LevelError, "Invalid Master Key") {
		t.Fatalf("rejected secret changed the setting or was not reported")
	}
	if ok, err := s.SubmitMasterKey(ctx, apitest.MasterKey); !ok || err != nil {
		t.Fatalf("Submit(master) = %v, %v", ok, err)
	}
	if e.backend.Setting("isRegistrationOpen") || e.backend.Hits("update-setting") != 1 {
		t.Fatalf("setting not written exactly once")
	}
	if e.backend.Hits("settings") != 2 {
		t.Fatalf("settings not refetched: hits=%d", e.backend.Hits("settings"))
	}
	if s.Gate().State() != stepup.Closed {
		t.Fatalf("challenge still open")
	}
}

func TestRoleUpdatedPushRefreshesAccess(t *testing.T) {
	e := newEnv(t, true)
	s := e.open(t)
	waitFor(t, "user room", func() bool { return e.bridge.State("user-42") == live.Subscribed })

	e.backend.SetMyRoles("ADMIN", "DOCUMENTATION")
	e.ft.events <- live.Event{Room: "user-42", Name: live.EventRoleUpdated}

	waitFor(t, "roles notification", func() bool { return e.notes.has(dashsync.LevelInfo, MsgRolesUpdated) })
	if !s.Access().Documentation || e.backend.Hits("me") != 2 {
		t.Fatalf("access = %+v me hits = %d", s.Access(), e.backend.Hits("me"))
	}
}

func (n *notes) count(msg string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, x := range n.got {
		if x.Message == msg {
			c++
		}
	}
	return c
}

func TestRoleBroadcastDoesNotNotify(t *testing.T) {
	e := newEnv(t, true)
	e.open(t)
	waitFor(t, "user room", func() bool { return e.bridge.State("user-42") == live.Subscribed })

	e.ft.events <- live.Event{Name: live.EventRoleUpdated}
	waitFor(t, "broadcast refetch", func() bool { return e.backend.Hits("me") == 2 })
	e.ft.events <- live.Event{Room: "user-7", Name: live.EventRoleUpdated}
	e.ft.events <- live.Event{Room: "user-42", Name: live.EventRoleUpdated}
	// Events dispatch in order, so once this one refetches the earlier
	// handlers have returned.
	e.ft.events <- live.Event{Name: live.EventRoleUpdated}
	waitFor(t, "second broadcast refetch", func() bool { return e.backend.Hits("me") == 4 })

	if n := e.notes.count(MsgRolesUpdated); n != 1 {
		t.Fatalf("role notifications = %d, want 1", n)
	}
}

func TestLosingRoleMovesActiveTab(t *testing.T) {
	e := newEnv(t, true)
	s := e.open(t)
	waitFor(t, "user room", func() bool { return e.bridge.State("user-42") == live.Subscribed })

	e.backend.SetMe(api.User{ID: 42, Email: "ada@example.com", IsJudge: true})
	e.ft.events <- live.Event{Room: "user-42", Name: live.EventRoleUpdated}

	waitFor(t, "tab switch", func() bool { return s.ActiveTab() == TabJudging })
	if s.Access().Admin {
		t.Fatalf("admin access kept")
	}
}

func TestLeaderboardWatch(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)
	s := e.open(t)
	e.backend.SetLeaderboard(5, 1, []api.LeaderboardEntry{{Team: api.Team{ID: 1, Name: "A"}, Score: 3}})

	var mu sync.Mutex
	var last dashsync.Result[[]api.LeaderboardEntry]
	w, err := s.WatchLeaderboard(ctx, 5, 1, func(r dashsync.Result[[]api.LeaderboardEntry]) {
		mu.Lock()
		last = r
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	if !e.ft.in("event-5") {
		t.Fatalf("event room not joined")
	}

	e.backend.SetLeaderboard(5, 1, []api.LeaderboardEntry{
		{Team: api.Team{ID: 2, Name: "B"}, Score: 9},
		{Team: api.Team{ID: 1, Name: "A"}, Score: 3},
	})
	e.ft.events <- live.Event{Room: "event-5", Name: live.EventRefreshLeaderboard}
	waitFor(t, "leaderboard refresh", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(last.Data) == 2
	})
	if e.backend.Hits("leaderboard") != 2 {
		t.Fatalf("leaderboard hits = %d", e.backend.Hits("leaderboard"))
	}

	w.Close()
	if e.ft.in("event-5") {
		t.Fatalf("event room kept after watch closed")
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)
	s := e.open(t)
	waitFor(t, "user room", func() bool { return e.ft.in("user-42") })
	if _, err := s.WatchLeaderboard(ctx, 5, 1, nil); err != nil {
		t.Fatal(err)
	}

	s.Close()
	s.Close()
	if e.ft.in("user-42") || e.ft.in("event-5") {
		t.Fatalf("rooms still joined after Close")
	}
	if err := s.Visit(ctx, TabSettings); !errors.Is(err, ErrClosed) {
		t.Fatalf("Visit after Close = %v", err)
	}
}

func TestCatalogCodecs(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"json", "cbor", "msgpack"} {
		e := newEnv(t, false)
		q := Catalog{API: e.client, Codec: name}.Settings()
		r, err := q.Fetch(ctx, e.cache, true)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(r.Data) != 2 || r.Data[0].Key != "isQuizLive" || !r.Data[1].Value {
			t.Fatalf("%s: settings = %+v", name, r.Data)
		}
	}
}

func TestCatalogDocument(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	r, err := Catalog{API: e.client}.Document("/admin/variables").Fetch(ctx, e.cache, true)
	if err != nil {
		t.Fatal(err)
	}
	vars := r.Data.GetFields()["variables"].GetListValue().GetValues()
	if len(vars) != 1 || vars[0].GetStructValue().GetFields()["value"].GetStringValue() != "Incridea" {
		t.Fatalf("document = %v", r.Data)
	}
}

// The quiz editor's writes refresh both the event page and the round's quiz.
func TestQuizEditorRefreshesRoundAndEvent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	s := e.open(t)
	cat := s.Catalog()

	event := cat.OrganiserEvent(5).Subscribe(e.cache, nil)
	defer event.Close()
	quiz := cat.RoundQuiz(5, 2).Subscribe(e.cache, nil)
	defer quiz.Close()
	if err := event.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	_ = quiz.Sync(ctx) // no quiz yet

	start := time.Date(2026, 3, 14, 9, 0, 0, 0, IST)
	created, err := s.Mutations().CreateQuiz.Mutate(ctx, api.QuizDraft{
		EventID: 5, RoundNo: 2, Name: "Prelims", Password: "p", StartTime: start, EndTime: start.Add(time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if ev, q := e.backend.Hits("organiser-event"), e.backend.Hits("round-quiz"); ev != 2 || q != 2 {
		t.Fatalf("after create: event fetches=%d quiz fetches=%d, want 2 and 2", ev, q)
	}
	ev, _ := cat.OrganiserEvent(5).Get(ctx, e.cache)
	if ev.Stale || ev.Data.Rounds[1].Quiz == nil || ev.Data.Rounds[1].Quiz.Name != "Prelims" {
		t.Fatalf("event = %+v", ev)
	}

	_, err = s.Mutations().UpdateQuiz.Mutate(ctx, api.QuizDraft{
		EventID: 5, RoundNo: 2, QuizID: created.ID, Name: "Prelims", Password: "p",
		Questions: []api.DraftQuestion{{Question: "2+2?", Options: []api.DraftOption{{Value: "4", IsAnswer: true}, {Value: "5"}}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if ev, q := e.backend.Hits("organiser-event"), e.backend.Hits("round-quiz"); ev != 3 || q != 3 {
		t.Fatalf("after update: event fetches=%d quiz fetches=%d, want 3 and 3", ev, q)
	}
	r, _ := cat.RoundQuiz(5, 2).Get(ctx, e.cache)
	if r.Stale || len(r.Data.Questions) != 1 || len(r.Data.Questions[0].Options) != 2 {
		t.Fatalf("quiz = %+v", r)
	}
	if !e.notes.has(dashsync.LevelSuccess, "Quiz created") || !e.notes.has(dashsync.LevelSuccess, "Quiz saved") {
		t.Fatalf("missing success notifications")
	}
}

func TestUpdateQuizNeedsID(t *testing.T) {
	e := newEnv(t, false)
	if _, err := e.client.UpdateQuiz(context.Background(), api.QuizDraft{EventID: 5, RoundNo: 2}); err == nil {
		t.Fatalf("expected error without quiz id")
	}
	if e.backend.Hits("update-quiz") != 0 {
		t.Fatalf("request sent without quiz id")
	}
}
