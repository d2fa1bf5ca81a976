// Package sloghooks reports slow and failed calls to a slog.Logger. It
// complements Instrumentation's per-call logging, which is usually kept at
// info level in production.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	rc "github.com/unkn0wn-root/recordcache"
)

type Options struct {
	// SlowThreshold marks successful calls at or above it as slow. 0 disables.
	SlowThreshold time.Duration
	// Sampling to avoid floods; 0/1 = log all.
	SlowEvery     uint64
	NotFoundEvery uint64
	// Optional key redactor for cache keys. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Observer struct {
	l    *slog.Logger
	opts Options

	slowCtr     atomic.Uint64
	notFoundCtr atomic.Uint64
}

var _ rc.Observer = (*Observer)(nil)

func New(l *slog.Logger, opts Options) *Observer {
	return &Observer{l: l, opts: opts}
}

func (h *Observer) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Observer) attrs(o rc.Observation) []any {
	out := []any{"op", o.Operation, "duration", o.Duration}
	if ns, ok := o.Args["namespace"]; ok {
		out = append(out, "ns", ns)
	}
	if k, ok := o.Args["key"].(string); ok {
		out = append(out, "key", h.redact(k))
	}
	if id, ok := o.Args["id"]; ok {
		out = append(out, "id", id)
	}
	return out
}

func (h *Observer) OperationObserved(o rc.Observation) {
	if h.l == nil {
		return
	}
	switch o.Outcome {
	case rc.OutcomeSuccess:
		if h.opts.SlowThreshold <= 0 || o.Duration < h.opts.SlowThreshold {
			return
		}
		if !sample(h.opts.SlowEvery, &h.slowCtr) {
			return
		}
		h.l.Warn("recordcache.slow_call", h.attrs(o)...)
	case rc.OutcomeDomainError:
		if !sample(h.opts.NotFoundEvery, &h.notFoundCtr) {
			return
		}
		h.l.Debug("recordcache.not_found", h.attrs(o)...)
	default:
		var ie *rc.InvalidateError
		if errors.As(o.Err, &ie) {
			h.l.Error("recordcache.invalidate_outage", append(h.attrs(o),
				"bump_err", ie.BumpErr,
				"del_err", ie.DelErr)...)
			return
		}
		h.l.Error("recordcache.call_failed", append(h.attrs(o), "err", o.Err)...)
	}
}
