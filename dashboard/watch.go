package dashboard

import (
	"context"
	"sync"

	"github.com/unkn0wn-root/dashsync"
	"github.com/unkn0wn-root/dashsync/api"
	"github.com/unkn0wn-root/dashsync/live"
)

// Watch keeps one round's quiz leaderboard current while it is open.
type Watch struct {
	s    *Session
	sub  *dashsync.Subscription
	room *live.Subscription
	once sync.Once
}

// WatchLeaderboard loads the leaderboard and, with a bridge, joins the event
// room so REFRESH_LEADERBOARD pushes refetch it. onChange may be nil.
func (s *Session) WatchLeaderboard(ctx context.Context, eventID int64, roundNo int,
	onChange func(dashsync.Result[[]api.LeaderboardEntry])) (*Watch, error) {
	q := s.catalog.Leaderboard(eventID, roundNo)
	w := &Watch{s: s}
	w.sub = q.Subscribe(s.cache, onChange, dashsync.WithEnabled(s.signedIn))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		w.sub.Close()
		return nil, ErrClosed
	}
	s.watches[w] = struct{}{}
	s.mu.Unlock()

	if s.bridge != nil && eventID > 0 {
		room, err := s.bridge.Subscribe(ctx, live.EventRoom(eventID), live.Bindings{
			live.EventRefreshLeaderboard: {LeaderboardKey(eventID, roundNo)},
		})
		if err != nil {
			w.Close()
			return nil, err
		}
		w.room = room
	}
	if err := w.sub.Sync(ctx); err != nil {
		return w, err
	}
	return w, nil
}

// Refresh forces a new leaderboard request.
func (w *Watch) Refresh(ctx context.Context) error { return w.sub.Refresh(ctx) }

func (w *Watch) Entry(ctx context.Context) dashsync.Entry { return w.sub.Entry(ctx) }

func (w *Watch) Close() {
	w.once.Do(func() {
		w.s.mu.Lock()
		delete(w.s.watches, w)
		w.s.mu.Unlock()
		if w.room != nil {
			w.room.Close()
		}
		w.sub.Close()
	})
}
