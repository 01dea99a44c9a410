// Package dashboard wires the cache, mutation gateway, live bridge and master
// key gate into the event dashboard: its query keys, its writes and what they
// invalidate, its tabs and who may see them.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/dashsync"
	"github.com/unkn0wn-root/dashsync/api"
	"github.com/unkn0wn-root/dashsync/kv"
	"github.com/unkn0wn-root/dashsync/live"
	"github.com/unkn0wn-root/dashsync/stepup"
)

const (
	MsgAccessRequired = "Access required."
	MsgSessionExpired = "Session expired. Please log in again."
	MsgRolesUpdated   = "Your roles have been updated"
)

var (
	ErrNoAccess      = errors.New("dashboard: no dashboard role")
	ErrTabNotAllowed = errors.New("dashboard: tab not available")
	ErrClosed        = errors.New("dashboard: session closed")
)

type Options struct {
	API   *api.Client
	Cache *dashsync.Cache

	// Bridge enables live updates. Nil leaves the session on manual refresh.
	Bridge *live.Bridge
	// Store persists the active tab. Defaults to an in-memory store.
	Store    kv.Store
	Notifier dashsync.Notifier
	Logger   dashsync.Logger
	// Verifier checks the master key. Defaults to the server check.
	Verifier stepup.Verifier

	// Codec and MaxPayload configure the Catalog.
	Codec      string
	MaxPayload int
}

// Session is one signed-in dashboard. Queries of a tab only load once the
// tab has been visited and while the user's roles allow it.
type Session struct {
	api      *api.Client
	cache    *dashsync.Cache
	bridge   *live.Bridge
	store    kv.Store
	notifier dashsync.Notifier
	log      dashsync.Logger

	catalog        Catalog
	muts           *Mutations
	gate           *stepup.Gate
	updateSetting  *stepup.Guarded[api.UpdateSetting]
	upsertVariable *stepup.Guarded[api.UpsertVariable]

	me         *dashsync.Subscription
	ids        chan string
	userRoom   *live.Deferred
	stopListen func()

	mu         sync.Mutex
	user       api.User
	access     Access
	active     Tab
	visited    map[Tab]bool
	views      map[Tab][]*dashsync.Subscription
	userSearch string
	logsPage   int
	watches    map[*Watch]struct{}
	lastUserID int64
	closed     bool
}

// Open resolves the signed-in user and restores the last active tab. It
// fails with dashsync.ErrUnauthorized when there is no valid session and with
// ErrNoAccess when the user holds no dashboard role.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.API == nil || opts.Cache == nil {
		return nil, errors.New("dashboard: API and Cache are required")
	}
	s := &Session{
		api:      opts.API,
		cache:    opts.Cache,
		bridge:   opts.Bridge,
		store:    opts.Store,
		notifier: opts.Notifier,
		log:      opts.Logger,
		catalog:  Catalog{API: opts.API, Codec: opts.Codec, MaxPayload: opts.MaxPayload},
		ids:      make(chan string, 1),
		visited:  map[Tab]bool{DefaultTab: true},
		logsPage: 1,
		watches:  make(map[*Watch]struct{}),
	}
	if s.store == nil {
		s.store = kv.NewMemory()
	}
	if s.notifier == nil {
		s.notifier = dashsync.NopNotifier{}
	}
	if s.log == nil {
		s.log = dashsync.NopLogger{}
	}
	verifier := opts.Verifier
	if verifier == nil {
		verifier = opts.API.MasterKeyVerifier()
	}

	s.muts = NewMutations(s.cache, s.notifier, s.api)
	s.gate = stepup.New(verifier, stepup.Options{Logger: s.log, Notifier: s.notifier})
	s.updateSetting = stepup.Guard(s.gate, s.muts.UpdateSetting)
	s.upsertVariable = stepup.Guard(s.gate, s.muts.UpsertVariable)

	if !s.api.HasToken(ctx) {
		return nil, api.ErrNoToken
	}
	s.me = s.catalog.Me().Subscribe(s.cache, s.onMe, dashsync.WithEnabled(s.signedIn))
	if err := s.me.Sync(ctx); err != nil {
		s.me.Close()
		if errors.Is(err, dashsync.ErrUnauthorized) {
			s.notify(dashsync.LevelError, MsgSessionExpired)
		}
		return nil, err
	}

	s.mu.Lock()
	acc := s.access
	s.mu.Unlock()
	if !acc.Any() {
		s.me.Close()
		s.notify(dashsync.LevelError, MsgAccessRequired)
		return nil, ErrNoAccess
	}

	s.views = map[Tab][]*dashsync.Subscription{
		TabSettings:  {tabView(s, TabSettings, s.catalog.Settings())},
		TabVariables: {tabView(s, TabVariables, s.catalog.Variables())},
		TabUsers:     {tabView(s, TabUsers, s.catalog.Users("")), tabView(s, TabUsers, s.catalog.AccessUsers())},
		TabLogs:      {tabView(s, TabLogs, s.catalog.Logs(1))},
		TabBranchRep: {tabView(s, TabBranchRep, s.catalog.BranchRepEvents())},
		TabDocAccess: {tabView(s, TabDocAccess, s.catalog.DocEvents()), tabView(s, TabDocAccess, s.catalog.Branches())},
		TabAssignRep: {tabView(s, TabAssignRep, s.catalog.Branches())},
		TabOrganiser: {tabView(s, TabOrganiser, s.catalog.OrganiserEvents())},
		TabJudging:   {tabView(s, TabJudging, s.catalog.JudgeRounds())},
	}

	if s.bridge != nil {
		s.stopListen = s.bridge.Listen(s.handleEvent)
		s.userRoom = s.bridge.Defer(context.Background(), s.ids, userRoom)
	}

	want := DefaultTab
	if stored, ok, err := s.store.Get(ctx, kv.KeyActiveTab); err != nil {
		s.log.Warn("read active tab failed", dashsync.Fields{"err": err})
	} else if t, valid := ParseTab(stored); ok && valid {
		want = t
	}
	if err := s.Visit(ctx, acc.Pick(want)); err != nil {
		s.log.Warn("initial tab load failed", dashsync.Fields{"err": err})
	}
	return s, nil
}

// tabView is a query of tab t, enabled while t is visited and allowed.
func tabView[V any](s *Session, t Tab, q dashsync.Query[V]) *dashsync.Subscription {
	return q.Subscribe(s.cache, nil, dashsync.WithEnabled(func() bool { return s.tabEnabled(t) }))
}

func (s *Session) signedIn() bool {
	return s.api.HasToken(context.Background())
}

func (s *Session) tabEnabled(t Tab) bool {
	s.mu.Lock()
	ok := !s.closed && s.visited[t] && s.access.Allows(t)
	s.mu.Unlock()
	return ok && s.signedIn()
}

// onMe runs whenever auth/me changes, including after a ROLE_UPDATED push.
func (s *Session) onMe(r dashsync.Result[api.User]) {
	if !r.HasData {
		return
	}
	s.mu.Lock()
	s.user = r.Data
	s.access = AccessOf(r.Data)
	var moved []*dashsync.Subscription
	if prev := s.active; prev != "" && !s.closed {
		s.active = s.access.Pick(prev)
		if s.active != "" && s.active != prev {
			s.visited[s.active] = true
			moved = slices.Clone(s.views[s.active])
		}
	}
	idChanged := r.Data.ID != s.lastUserID
	s.lastUserID = r.Data.ID
	s.mu.Unlock()

	if idChanged {
		s.pushID(strconv.FormatInt(r.Data.ID, 10))
	}
	if len(moved) > 0 {
		go func() {
			if err := syncAll(context.Background(), moved); err != nil {
				s.log.Warn("tab load after role change failed", dashsync.Fields{"err": err})
			}
		}()
	}
}

// pushID hands the newest user id to the deferred user room, replacing an
// id not yet consumed.
func (s *Session) pushID(id string) {
	for {
		select {
		case s.ids <- id:
			return
		default:
			select {
			case <-s.ids:
			default:
			}
		}
	}
}

func userRoom(id string) (string, live.Bindings) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return "", nil
	}
	return live.UserRoom(n), live.Bindings{live.EventRoleUpdated: {KeyMe}}
}

// handleEvent runs after the bridge refetched the keys an event invalidated.
// Broadcasts refresh roles silently; only the user's own room notifies.
func (s *Session) handleEvent(ev live.Event) {
	if ev.Name != live.EventRoleUpdated {
		return
	}
	s.mu.Lock()
	mine := ev.Room != "" && ev.Room == live.UserRoom(s.user.ID)
	s.mu.Unlock()
	if mine {
		s.notify(dashsync.LevelInfo, MsgRolesUpdated)
	}
}

func (s *Session) notify(l dashsync.Level, msg string) {
	s.notifier.Notify(dashsync.Notification{Level: l, Message: msg, Source: "dashboard"})
}

// Visit makes t the active tab, persists it and loads its queries.
func (s *Session) Visit(ctx context.Context, t Tab) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.access.Allows(t) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTabNotAllowed, t)
	}
	s.active = t
	s.visited[t] = true
	subs := slices.Clone(s.views[t])
	s.mu.Unlock()

	if err := s.store.Set(ctx, kv.KeyActiveTab, string(t)); err != nil {
		s.log.Warn("persist active tab failed", dashsync.Fields{"tab": string(t), "err": err})
	}
	return syncAll(ctx, subs)
}

// Refresh re-syncs the active tab; only stale queries hit the server.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	subs := slices.Clone(s.views[s.active])
	s.mu.Unlock()
	return syncAll(ctx, append(subs, s.me))
}

func syncAll(ctx context.Context, subs []*dashsync.Subscription) error {
	var g errgroup.Group
	for _, sub := range subs {
		g.Go(func() error { return sub.Sync(ctx) })
	}
	return g.Wait()
}

// SearchUsers re-keys the Users tab on a new search term.
func (s *Session) SearchUsers(ctx context.Context, term string) error {
	term = strings.TrimSpace(term)
	sub := tabView(s, TabUsers, s.catalog.Users(term))
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Close()
		return ErrClosed
	}
	old := s.views[TabUsers][0]
	s.views[TabUsers][0] = sub
	s.userSearch = term
	s.mu.Unlock()
	old.Close()
	return sub.Sync(ctx)
}

// SetLogsPage re-keys the Logs tab on another page.
func (s *Session) SetLogsPage(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	sub := tabView(s, TabLogs, s.catalog.Logs(page))
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Close()
		return ErrClosed
	}
	old := s.views[TabLogs][0]
	s.views[TabLogs][0] = sub
	s.logsPage = page
	s.mu.Unlock()
	old.Close()
	return sub.Sync(ctx)
}

func (s *Session) User() api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) Access() Access {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

func (s *Session) ActiveTab() Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Session) UserSearch() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userSearch
}

func (s *Session) LogsPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logsPage
}

func (s *Session) Cache() *dashsync.Cache   { return s.cache }
func (s *Session) Catalog() Catalog         { return s.catalog }
func (s *Session) Mutations() *Mutations    { return s.muts }
func (s *Session) Gate() *stepup.Gate       { return s.gate }
func (s *Session) UserRoom() *live.Deferred { return s.userRoom }

// UpdateSetting opens a master key challenge; the write runs on a
// successful SubmitMasterKey.
func (s *Session) UpdateSetting(p api.UpdateSetting) (stepup.Request, error) {
	return s.updateSetting.Mutate(p)
}

// UpsertVariable is guarded like UpdateSetting.
func (s *Session) UpsertVariable(p api.UpsertVariable) (stepup.Request, error) {
	return s.upsertVariable.Mutate(p)
}

func (s *Session) SubmitMasterKey(ctx context.Context, secret string) (bool, error) {
	return s.gate.Submit(ctx, secret)
}

// Logout forgets the token, drops every cached response and closes s.
func (s *Session) Logout(ctx context.Context) error {
	err := s.api.Logout(ctx)
	s.Close()
	return errors.Join(err, s.cache.Reset(ctx))
}

// Close tears down every subscription, watch and room the session holds.
// It is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	var subs []*dashsync.Subscription
	for _, vs := range s.views {
		subs = append(subs, vs...)
	}
	watches := make([]*Watch, 0, len(s.watches))
	for w := range s.watches {
		watches = append(watches, w)
	}
	s.mu.Unlock()

	s.gate.Cancel()
	if s.stopListen != nil {
		s.stopListen()
	}
	if s.userRoom != nil {
		s.userRoom.Close()
	}
	for _, w := range watches {
		w.Close()
	}
	for _, sub := range subs {
		sub.Close()
	}
	s.me.Close()
}
