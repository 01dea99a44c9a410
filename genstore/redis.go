package genstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares generations across processes, so an invalidation issued by one
// dashboard session marks the payloads of every other session stale. A TTL keeps
// the keyspace bounded; an expired generation reads as 0 and entries self-heal.
type Redis struct {
	rdb redis.UniversalClient
	ns  string
	ttl time.Duration
}

var _ GenStore = (*Redis)(nil)

// NewRedis creates a Redis-backed store. ttl <= 0 disables expiry.
func NewRedis(client redis.UniversalClient, namespace string, ttl time.Duration) *Redis {
	return &Redis{rdb: client, ns: namespace, ttl: ttl}
}

func (s *Redis) key(k string) string { return "gen:" + s.ns + ":" + k }

func (s *Redis) Snapshot(ctx context.Context, k string) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key(k)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return parseGen(k, res)
}

func (s *Redis) SnapshotMany(ctx context.Context, ks []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(ks))
	if len(ks) == 0 {
		return out, nil
	}
	full := make([]string, len(ks))
	for i, k := range ks {
		full[i] = s.key(k)
	}
	vals, err := s.rdb.MGet(ctx, full...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if v == nil {
			out[ks[i]] = 0
			continue
		}
		g, err := parseGen(ks[i], fmt.Sprint(v))
		if err != nil {
			return nil, err
		}
		out[ks[i]] = g
	}
	return out, nil
}

func (s *Redis) Bump(ctx context.Context, k string) (uint64, error) {
	m, err := s.BumpMany(ctx, []string{k})
	if err != nil {
		return 0, err
	}
	return m[k], nil
}

// BumpMany pipelines INCR (and EXPIRE when a TTL is set) for every key in one
// round-trip. Per-key failures are joined into err.
func (s *Redis) BumpMany(ctx context.Context, ks []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(ks))
	if len(ks) == 0 {
		return out, nil
	}
	incrs := make([]*redis.IntCmd, len(ks))
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range ks {
			incrs[i] = p.Incr(ctx, s.key(k))
			if s.ttl > 0 {
				p.Expire(ctx, s.key(k), s.ttl)
			}
		}
		return nil
	})
	var errs []error
	for i, cmd := range incrs {
		if cmd.Err() != nil {
			errs = append(errs, fmt.Errorf("bump %s: %w", ks[i], cmd.Err()))
			continue
		}
		out[ks[i]] = uint64(cmd.Val())
	}
	if len(errs) == 0 && err != nil {
		errs = append(errs, err)
	}
	return out, errors.Join(errs...)
}

// Cleanup is a no-op; Redis expires keys itself when a TTL is set.
func (s *Redis) Cleanup(time.Duration) {}

// Close leaves the client open; it is owned by whoever built it.
func (s *Redis) Close(context.Context) error { return nil }

func parseGen(k, s string) (uint64, error) {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("genstore: parse %s: %w", k, err)
	}
	return u, nil
}
