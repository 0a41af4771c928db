// Package sloghooks reports tagcache events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/tagcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery      uint64
	ProviderErrorEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	providerCtr atomic.Uint64
}

var _ tagcache.Hooks = (*Hooks)(nil)

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

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("tagcache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderError(op string, err error) {
	if h.l == nil || !sample(h.opts.ProviderErrorEvery, &h.providerCtr) {
		return
	}
	h.l.Warn("tagcache.provider_error",
		"op", op,
		"err", err)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.provider_set_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) TagSnapshotError(count int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.tag_snapshot_error",
		"count", count,
		"err", err)
}

// Tags are logged verbatim; they name persistence objects, not user data.
func (h *Hooks) TagBumpError(tag string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("tagcache.tag_bump_error",
		"tag", tag,
		"err", err)
}
