// Package sloghooks reports dashsync hook events as slog records, with
// sampling for the noisy ones.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/dashsync"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	DiscardEvery  uint64
	SelfHealEvery uint64
	// Optional storage key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	discardCtr  atomic.Uint64
	selfHealCtr atomic.Uint64
}

var _ dashsync.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n <= 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) FetchFailed(key dashsync.Key, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("dashsync.fetch_failed", "key", key.String(), "err", err)
}

func (h *Hooks) FetchDiscarded(key dashsync.Key, reason string) {
	if h.l == nil || !sample(h.opts.DiscardEvery, &h.discardCtr) {
		return
	}
	h.l.Debug("dashsync.fetch_discarded", "key", key.String(), "reason", reason)
}

func (h *Hooks) Invalidated(pattern dashsync.Key, n int) {
	if h.l == nil {
		return
	}
	h.l.Debug("dashsync.invalidated", "pattern", pattern.String(), "matched", n)
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("dashsync.self_heal", "key", h.redact(storageKey), "reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("dashsync.provider_set_rejected", "key", h.redact(storageKey))
}

func (h *Hooks) GenSnapshotError(count int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("dashsync.gen_snapshot_error", "count", count, "err", err)
}

func (h *Hooks) GenBumpError(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("dashsync.gen_bump_error", "key", h.redact(storageKey), "err", err)
}

func (h *Hooks) InvalidateOutage(key dashsync.Key, bumpErr, delErr error) {
	if h.l == nil {
		return
	}
	h.l.Error("dashsync.invalidate_outage",
		"key", key.String(),
		"bump_err", bumpErr,
		"del_err", delErr)
}

func (h *Hooks) MutationFailed(name string, err error) {
	if h.l == nil {
		return
	}
	h.l.Info("dashsync.mutation_failed", "mutation", name, "err", err)
}
