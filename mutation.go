package dashsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MutationDef declares one server write and what it makes stale.
type MutationDef[P, R any] struct {
	Name string
	Do   func(ctx context.Context, payload P) (R, error)

	// Invalidates lists keys (or prefixes) refetched after every success.
	Invalidates []Key
	// InvalidatesFor adds targets derived from the payload and the response.
	InvalidatesFor func(payload P, resp R) []Key
	// NoInvalidate marks a write that affects no cached query.
	NoInvalidate bool

	Success string // notification on success; "" sends none
	Failure string // error notification when the server gave no message
}

type MutationStatus uint8

const (
	MutationIdle MutationStatus = iota
	MutationPending
	MutationSuccess
	MutationError
)

func (s MutationStatus) String() string {
	switch s {
	case MutationPending:
		return "pending"
	case MutationSuccess:
		return "success"
	case MutationError:
		return "error"
	default:
		return "idle"
	}
}

// MutationRequest records one Mutate call.
type MutationRequest[P any] struct {
	ID          uuid.UUID
	Name        string
	Payload     P
	Targets     []Key
	Status      MutationStatus
	Err         error
	StartedAt   time.Time
	CompletedAt time.Time
}

// Mutation routes writes through the server and invalidates declared targets
// once the server confirms. Calls are never deduplicated.
type Mutation[P, R any] struct {
	c   *Cache
	n   Notifier
	def MutationDef[P, R]

	mu       sync.Mutex
	inflight int
	last     MutationRequest[P]
}

// NewMutation validates def. A definition without invalidation targets must
// say so with NoInvalidate.
func NewMutation[P, R any](c *Cache, n Notifier, def MutationDef[P, R]) (*Mutation[P, R], error) {
	if c == nil {
		return nil, errors.New("dashsync: mutation needs a cache")
	}
	if def.Name == "" {
		return nil, errors.New("dashsync: mutation name is required")
	}
	if def.Do == nil {
		return nil, fmt.Errorf("dashsync: mutation %q has no Do", def.Name)
	}
	hasTargets := len(def.Invalidates) > 0 || def.InvalidatesFor != nil
	if !hasTargets && !def.NoInvalidate {
		return nil, fmt.Errorf("dashsync: mutation %q declares no invalidation targets", def.Name)
	}
	if hasTargets && def.NoInvalidate {
		return nil, fmt.Errorf("dashsync: mutation %q declares targets and NoInvalidate", def.Name)
	}
	return &Mutation[P, R]{
		c:   c,
		n:   coalesce[Notifier](n, NopNotifier{}),
		def: def,
	}, nil
}

// MustMutation is NewMutation for package-level definitions.
func MustMutation[P, R any](c *Cache, n Notifier, def MutationDef[P, R]) *Mutation[P, R] {
	m, err := NewMutation(c, n, def)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Mutation[P, R]) Name() string { return m.def.Name }

// Status is Pending while any call is in flight, otherwise the outcome of the
// last completed call.
func (m *Mutation[P, R]) Status() MutationStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflight > 0 {
		return MutationPending
	}
	return m.last.Status
}

// Last returns the most recently completed (or started) request.
func (m *Mutation[P, R]) Last() MutationRequest[P] {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.last
	r.Targets = append([]Key(nil), r.Targets...)
	return r
}

// Mutate performs the write. On success every declared target is invalidated
// before Mutate returns, even if ctx was cancelled meanwhile. On failure the
// cache is left untouched, except that ErrUnauthorized resets it.
func (m *Mutation[P, R]) Mutate(ctx context.Context, payload P) (R, error) {
	req := MutationRequest[P]{
		ID:        uuid.New(),
		Name:      m.def.Name,
		Payload:   payload,
		Targets:   append([]Key(nil), m.def.Invalidates...),
		Status:    MutationPending,
		StartedAt: time.Now(),
	}
	m.mu.Lock()
	m.inflight++
	m.last = req
	m.mu.Unlock()

	resp, err := m.def.Do(ctx, payload)
	if err != nil {
		req.Status, req.Err = MutationError, err
		m.finish(req)
		m.c.hooks.MutationFailed(m.def.Name, err)
		m.c.log.Warn("mutation failed", Fields{"mutation": m.def.Name, "id": req.ID.String(), "err": err})
		m.n.Notify(Notification{Level: LevelError, Message: ErrorMessage(err, m.def.Failure), Source: m.def.Name})
		if errors.Is(err, ErrUnauthorized) {
			m.c.unauthorized(context.WithoutCancel(ctx))
		}
		return resp, err
	}

	if m.def.InvalidatesFor != nil {
		req.Targets = append(req.Targets, m.def.InvalidatesFor(payload, resp)...)
	}
	req.Targets = dedupKeys(req.Targets)

	ictx := context.WithoutCancel(ctx)
	for _, k := range req.Targets {
		if _, ierr := m.c.Invalidate(ictx, k); ierr != nil {
			m.c.log.Warn("invalidation after mutation incomplete",
				Fields{"mutation": m.def.Name, "target": k.String(), "err": ierr})
		}
	}

	req.Status = MutationSuccess
	m.finish(req)
	m.c.log.Debug("mutation applied", Fields{"mutation": m.def.Name, "id": req.ID.String(), "targets": len(req.Targets)})
	if m.def.Success != "" {
		m.n.Notify(Notification{Level: LevelSuccess, Message: m.def.Success, Source: m.def.Name})
	}
	return resp, nil
}

func (m *Mutation[P, R]) finish(req MutationRequest[P]) {
	req.CompletedAt = time.Now()
	m.mu.Lock()
	m.inflight--
	m.last = req
	m.mu.Unlock()
}

func dedupKeys(ks []Key) []Key {
	seen := make(map[string]struct{}, len(ks))
	out := ks[:0]
	for _, k := range ks {
		if _, ok := seen[k.ID()]; ok {
			continue
		}
		seen[k.ID()] = struct{}{}
		out = append(out, k)
	}
	return out
}
