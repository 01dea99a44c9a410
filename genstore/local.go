package genstore

import (
	"context"
	"sync"
	"time"
)

type localGen struct {
	gen     uint64
	touched time.Time
}

// Local keeps generations in process. With a cleanup interval it prunes keys
// nobody bumped for longer than retention; a pruned key reads as 0 again.
type Local struct {
	mu   sync.RWMutex
	gens map[string]localGen

	stop chan struct{}
	done sync.WaitGroup
}

var _ GenStore = (*Local)(nil)

func NewLocal(cleanupInterval, retention time.Duration) *Local {
	s := &Local{gens: make(map[string]localGen)}
	if cleanupInterval <= 0 || retention <= 0 {
		return s
	}
	s.stop = make(chan struct{})
	t := time.NewTicker(cleanupInterval)
	s.done.Add(1)
	go func() {
		defer s.done.Done()
		defer t.Stop()
		for {
			select {
			case <-t.C:
				s.Cleanup(retention)
			case <-s.stop:
				return
			}
		}
	}()
	return s
}

func (s *Local) Snapshot(_ context.Context, k string) (uint64, error) {
	s.mu.RLock()
	g := s.gens[k].gen
	s.mu.RUnlock()
	return g, nil
}

func (s *Local) SnapshotMany(_ context.Context, ks []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(ks))
	s.mu.RLock()
	for _, k := range ks {
		out[k] = s.gens[k].gen
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Local) Bump(ctx context.Context, k string) (uint64, error) {
	m, err := s.BumpMany(ctx, []string{k})
	return m[k], err
}

// BumpMany takes the write lock once for the whole batch. A key listed twice is
// bumped twice.
func (s *Local) BumpMany(_ context.Context, ks []string) (map[string]uint64, error) {
	now := time.Now()
	out := make(map[string]uint64, len(ks))
	s.mu.Lock()
	for _, k := range ks {
		e := s.gens[k]
		e.gen++
		e.touched = now
		s.gens[k] = e
		out[k] = e.gen
	}
	s.mu.Unlock()
	return out, nil
}

func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)
	s.mu.Lock()
	for k, e := range s.gens {
		if e.touched.Before(cutoff) {
			delete(s.gens, k)
		}
	}
	s.mu.Unlock()
}

// Close stops the cleanup loop. Safe to call once.
func (s *Local) Close(context.Context) error {
	if s.stop != nil {
		close(s.stop)
		s.done.Wait()
	}
	return nil
}
