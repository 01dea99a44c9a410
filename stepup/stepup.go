// Package stepup holds sensitive writes behind a master key challenge.
//
// A guarded call does not reach the server. It opens a challenge carrying a
// Request (kind + payload); only after the verifier accepts a secret is the
// request executed, exactly once. This is a UX speed bump: the server still
// authorizes the write itself.
package stepup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/dashsync"
)

const (
	MsgVerifyFailed  = "Failed to verify Master Key"
	MsgInvalidSecret = "Invalid Master Key"
	MsgSecretNeeded  = "Master Key is required"
)

var (
	ErrNoChallenge = errors.New("stepup: no challenge open")
	ErrEmptySecret = errors.New("stepup: empty secret")
	ErrUnknownKind = errors.New("stepup: unknown request kind")
	ErrCancelled   = errors.New("stepup: challenge cancelled")
)

type State uint8

const (
	Closed State = iota
	AwaitingInput
	Verifying
)

func (s State) String() string {
	switch s {
	case AwaitingInput:
		return "awaiting-input"
	case Verifying:
		return "verifying"
	default:
		return "closed"
	}
}

// Request is the pending write: which registered executor runs it, and with what.
type Request struct {
	ID        uuid.UUID
	Kind      string
	Payload   any
	CreatedAt time.Time
}

type Result struct {
	OK      bool
	Message string // server explanation on rejection
}

type Verifier interface {
	Verify(ctx context.Context, secret string) (Result, error)
}

type VerifierFunc func(ctx context.Context, secret string) (Result, error)

func (f VerifierFunc) Verify(ctx context.Context, secret string) (Result, error) { return f(ctx, secret) }

// Executor performs a request of one kind after verification.
type Executor func(ctx context.Context, payload any) error

// Snapshot is what a prompt needs to render.
type Snapshot struct {
	State   State
	Pending *Request
	Message string
}

type Options struct {
	Logger   dashsync.Logger
	Notifier dashsync.Notifier // rejection and failure messages
	OnChange func(Snapshot)
}

type Gate struct {
	verifier Verifier
	log      dashsync.Logger
	notifier dashsync.Notifier
	onChange func(Snapshot)

	mu        sync.Mutex
	executors map[string]Executor
	state     State
	pending   *Request
	message   string
	epoch     uint64 // bumped whenever the pending request is replaced or dropped
}

func New(v Verifier, opts Options) *Gate {
	g := &Gate{
		verifier:  v,
		log:       opts.Logger,
		notifier:  opts.Notifier,
		onChange:  opts.OnChange,
		executors: make(map[string]Executor),
	}
	if g.log == nil {
		g.log = dashsync.NopLogger{}
	}
	if g.notifier == nil {
		g.notifier = dashsync.NopNotifier{}
	}
	return g
}

// Register binds kind to exec. Re-registering replaces the executor.
func (g *Gate) Register(kind string, exec Executor) {
	g.mu.Lock()
	g.executors[kind] = exec
	g.mu.Unlock()
}

// Open starts a challenge for a request. An outstanding challenge is replaced.
func (g *Gate) Open(kind string, payload any) (Request, error) {
	g.mu.Lock()
	if _, ok := g.executors[kind]; !ok {
		g.mu.Unlock()
		return Request{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	req := Request{ID: uuid.New(), Kind: kind, Payload: payload, CreatedAt: time.Now()}
	if g.pending != nil {
		g.log.Info("challenge replaced", dashsync.Fields{"old": g.pending.Kind, "new": kind})
	}
	g.epoch++
	g.pending = &req
	g.state = AwaitingInput
	g.message = ""
	snap := g.snapshotLocked()
	g.mu.Unlock()

	g.changed(snap)
	return req, nil
}

// Submit verifies secret against the open challenge. It reports whether the
// request was executed; a non-nil error with true is the executor's error.
// Submitting while a verification is running does nothing.
func (g *Gate) Submit(ctx context.Context, secret string) (bool, error) {
	g.mu.Lock()
	switch {
	case g.state == Verifying:
		g.mu.Unlock()
		return false, nil
	case g.state == Closed || g.pending == nil:
		g.mu.Unlock()
		return false, ErrNoChallenge
	case strings.TrimSpace(secret) == "":
		g.message = MsgSecretNeeded
		snap := g.snapshotLocked()
		g.mu.Unlock()
		g.changed(snap)
		return false, ErrEmptySecret
	}
	g.state = Verifying
	g.message = ""
	req := *g.pending
	epoch := g.epoch
	snap := g.snapshotLocked()
	g.mu.Unlock()
	g.changed(snap)

	res, verr := g.verifier.Verify(ctx, secret)

	g.mu.Lock()
	if g.epoch != epoch {
		g.mu.Unlock()
		g.log.Debug("verification outcome dropped", dashsync.Fields{"kind": req.Kind, "id": req.ID.String()})
		return false, ErrCancelled
	}
	if verr != nil || !res.OK {
		g.state = AwaitingInput
		g.message = MsgVerifyFailed
		if verr == nil {
			g.message = coalesce(res.Message, MsgInvalidSecret)
		}
		msg := g.message
		snap := g.snapshotLocked()
		g.mu.Unlock()
		g.changed(snap)
		g.notifier.Notify(dashsync.Notification{Level: dashsync.LevelError, Message: msg, Source: req.Kind})
		if verr != nil {
			g.log.Warn("master key verification failed", dashsync.Fields{"kind": req.Kind, "err": verr})
			return false, fmt.Errorf("stepup: verify: %w", verr)
		}
		return false, nil
	}

	exec := g.executors[req.Kind]
	g.epoch++
	g.state = Closed
	g.pending = nil
	g.message = ""
	snap = g.snapshotLocked()
	g.mu.Unlock()
	g.changed(snap)

	g.log.Debug("challenge passed", dashsync.Fields{"kind": req.Kind, "id": req.ID.String()})
	return true, exec(ctx, req.Payload)
}

// Cancel closes the challenge and drops the pending request, including one
// whose verification is still running.
func (g *Gate) Cancel() {
	g.mu.Lock()
	if g.state == Closed {
		g.mu.Unlock()
		return
	}
	g.epoch++
	g.state = Closed
	g.pending = nil
	g.message = ""
	snap := g.snapshotLocked()
	g.mu.Unlock()
	g.changed(snap)
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *Gate) snapshotLocked() Snapshot {
	s := Snapshot{State: g.state, Message: g.message}
	if g.pending != nil {
		p := *g.pending
		s.Pending = &p
	}
	return s
}

func (g *Gate) changed(s Snapshot) {
	if g.onChange != nil {
		g.onChange(s)
	}
}

func coalesce(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
