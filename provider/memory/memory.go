// Package memory is an in-process Provider with per-entry TTLs and an entry
// bound. It suits tests and single-node runs; the library-backed providers
// (sturdyc, ristretto, bigcache) are preferred in production.
package memory

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	pr "github.com/unkn0wn-root/recordcache/provider"
)

type entry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type Provider struct {
	m        *xsync.MapOf[string, entry]
	capacity int
	now      func() time.Time
}

var (
	_ pr.Provider = (*Provider)(nil)
	_ pr.Named    = (*Provider)(nil)
)

// New returns an unbounded provider.
func New() *Provider { return NewWithCapacity(0) }

// NewWithCapacity bounds the provider to roughly capacity entries; 0 means
// unbounded. When full, expired entries are swept and a write that still does
// not fit is rejected. Concurrent writers may overshoot by a few entries.
func NewWithCapacity(capacity int) *Provider {
	return &Provider{
		m:        xsync.NewMapOf[string, entry](),
		capacity: capacity,
		now:      time.Now,
	}
}

func (p *Provider) Name() string { return "memory" }

func (p *Provider) expired(e entry, now time.Time) bool {
	return !e.exp.IsZero() && now.After(e.exp)
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := p.m.Load(key)
	if !ok {
		return nil, false, nil
	}
	if p.expired(e, p.now()) {
		p.m.Compute(key, func(cur entry, loaded bool) (entry, bool) {
			// keep a fresh write that raced with us
			return cur, !loaded || cur.exp.Equal(e.exp)
		})
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	if p.capacity > 0 && p.m.Size() >= p.capacity {
		if _, exists := p.m.Load(key); !exists && !p.sweep() {
			return false, nil
		}
	}
	var exp time.Time
	if ttl > 0 {
		exp = p.now().Add(ttl)
	}
	b := make([]byte, len(value))
	copy(b, value)
	p.m.Store(key, entry{v: b, exp: exp})
	return true, nil
}

// sweep drops expired entries and reports whether there is room again.
func (p *Provider) sweep() bool {
	now := p.now()
	p.m.Range(func(k string, e entry) bool {
		if p.expired(e, now) {
			p.m.Delete(k)
		}
		return true
	})
	return p.m.Size() < p.capacity
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.m.Delete(key)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (p *Provider) Len() int { return p.m.Size() }

func (p *Provider) Close(context.Context) error {
	p.m.Clear()
	return nil
}
