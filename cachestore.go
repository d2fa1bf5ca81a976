package recordcache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/unkn0wn-root/recordcache/internal/wire"
	pr "github.com/unkn0wn-root/recordcache/provider"
	"github.com/unkn0wn-root/recordcache/sequence"
)

const keyPrefix = "rc:"

// CacheStore holds named namespaces of keyed byte entries.
//
// Every entry carries the generation of its (namespace, key) at write time.
// Evict bumps the generation, so a value read from the record store before an
// eviction can never be published after it through PutVersioned.
type CacheStore interface {
	// Get returns (value, true, nil) on hit. The returned slice must not be modified.
	Get(ctx context.Context, ns, key string) ([]byte, bool, error)
	// Put stores value under the current generation.
	Put(ctx context.Context, ns, key string, value []byte) error
	// Version snapshots the generation to pass to PutVersioned.
	Version(ctx context.Context, ns, key string) (uint64, error)
	// PutVersioned stores value only if the generation still equals observed.
	PutVersioned(ctx context.Context, ns, key string, value []byte, observed uint64) error
	// Evict removes the entry and invalidates in-flight PutVersioned writers.
	Evict(ctx context.Context, ns, key string) error
	// EvictAll removes every entry of the namespace.
	EvictAll(ctx context.Context, ns string) error
	// Clear evicts every known namespace.
	Clear(ctx context.Context) error
	Namespaces() []string
	Name() string
	Enabled() bool
	Close(ctx context.Context) error
}

// SetCostFunc computes the provider cost of an entry. Defaults to 1.
type SetCostFunc func(ns, key string, framed []byte) int64

type CacheOptions struct {
	// Provider is required.
	Provider pr.Provider
	// Generations issues per-key generations. Defaults to an in-process
	// sequence.Memory; use a shared counter (sequence.Redis) when several
	// replicas share one provider.
	Generations sequence.Counter
	Logger      Logger
	// TTL applied to every entry. Defaults to 10 minutes.
	TTL time.Duration
	// Namespaces always reported by Namespaces and emptied by Clear.
	Namespaces     []string
	ComputeSetCost SetCostFunc
}

type cacheStore struct {
	provider pr.Provider
	gens     sequence.Counter
	ownGens  bool
	log      Logger
	ttl      time.Duration
	cost     SetCostFunc

	// namespace -> set of keys written by this process
	keys *xsync.MapOf[string, *xsync.MapOf[string, struct{}]]
}

var _ CacheStore = (*cacheStore)(nil)

func NewCacheStore(opts CacheOptions) (CacheStore, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("recordcache: provider is required")
	}
	s := &cacheStore{
		provider: opts.Provider,
		gens:     opts.Generations,
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
		ttl:      coalesce(opts.TTL, 10*time.Minute),
		cost:     opts.ComputeSetCost,
		keys:     xsync.NewMapOf[string, *xsync.MapOf[string, struct{}]](),
	}
	if s.gens == nil {
		s.gens = sequence.NewMemory(0)
		s.ownGens = true
	}
	if s.cost == nil {
		s.cost = func(string, string, []byte) int64 { return 1 }
	}
	for _, ns := range opts.Namespaces {
		s.registry(ns)
	}
	return s, nil
}

func storageKey(ns, key string) string { return keyPrefix + ns + ":" + key }
func genName(ns, key string) string    { return ns + ":" + key }

func (s *cacheStore) registry(ns string) *xsync.MapOf[string, struct{}] {
	m, _ := s.keys.LoadOrCompute(ns, func() *xsync.MapOf[string, struct{}] {
		return xsync.NewMapOf[string, struct{}]()
	})
	return m
}

func (s *cacheStore) Name() string {
	if n, ok := s.provider.(pr.Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s.provider)
}

func (s *cacheStore) Enabled() bool { return true }

func (s *cacheStore) Namespaces() []string {
	out := make([]string, 0, s.keys.Size())
	s.keys.Range(func(ns string, _ *xsync.MapOf[string, struct{}]) bool {
		out = append(out, ns)
		return true
	})
	sort.Strings(out)
	return out
}

func (s *cacheStore) Get(ctx context.Context, ns, key string) ([]byte, bool, error) {
	k := storageKey(ns, key)
	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil || !ok {
		return nil, false, err
	}
	gen, payload, err := wire.Decode(raw)
	if err != nil {
		s.heal(ctx, ns, key, "corrupt frame")
		return nil, false, nil
	}
	cur, err := s.Version(ctx, ns, key)
	if err != nil {
		return nil, false, err
	}
	if gen != cur {
		s.heal(ctx, ns, key, "stale generation")
		return nil, false, nil
	}
	return payload, true, nil
}

// heal drops an entry that failed validation; the read is reported as a miss.
func (s *cacheStore) heal(ctx context.Context, ns, key, reason string) {
	if err := s.provider.Del(ctx, storageKey(ns, key)); err != nil {
		s.log.Warn("self-heal delete failed", Fields{"namespace": ns, "key": key, "reason": reason, "err": err})
		return
	}
	s.log.Debug("self-healed cache entry", Fields{"namespace": ns, "key": key, "reason": reason})
}

func (s *cacheStore) Version(ctx context.Context, ns, key string) (uint64, error) {
	cur, err := s.gens.Current(ctx, genName(ns, key))
	if err != nil {
		return 0, err
	}
	return uint64(cur), nil
}

func (s *cacheStore) Put(ctx context.Context, ns, key string, value []byte) error {
	gen, err := s.Version(ctx, ns, key)
	if err != nil {
		return err
	}
	return s.write(ctx, ns, key, value, gen)
}

func (s *cacheStore) PutVersioned(ctx context.Context, ns, key string, value []byte, observed uint64) error {
	gen, err := s.Version(ctx, ns, key)
	if err != nil {
		return err
	}
	if gen != observed {
		s.log.Debug("PutVersioned skipped (gen mismatch)", Fields{"namespace": ns, "key": key, "obs": observed, "cur": gen})
		return nil
	}
	return s.write(ctx, ns, key, value, gen)
}

func (s *cacheStore) write(ctx context.Context, ns, key string, value []byte, gen uint64) error {
	k := storageKey(ns, key)
	framed := wire.Encode(gen, value)
	ok, err := s.provider.Set(ctx, k, framed, s.cost(ns, key, framed), s.ttl)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("write rejected by provider (pressure)", Fields{"namespace": ns, "key": key})
		return nil
	}
	s.registry(ns).Store(key, struct{}{})
	return nil
}

func (s *cacheStore) Evict(ctx context.Context, ns, key string) error {
	newGen, bumpErr := s.gens.Next(ctx, genName(ns, key))
	delErr := s.provider.Del(ctx, storageKey(ns, key))
	if m, ok := s.keys.Load(ns); ok {
		m.Delete(key)
	}

	switch {
	case bumpErr != nil && delErr != nil:
		return &InvalidateError{Namespace: ns, Key: key, BumpErr: bumpErr, DelErr: delErr}
	case bumpErr != nil:
		// entry is gone; an in-flight PutVersioned may still repopulate it until TTL
		s.log.Warn("evict: gen bump failed, entry deleted", Fields{"namespace": ns, "key": key, "err": bumpErr})
	case delErr != nil:
		// gen moved, the stale entry self-heals on next read
		s.log.Warn("evict: delete failed, gen bumped", Fields{"namespace": ns, "key": key, "err": delErr})
	default:
		s.log.Debug("evicted (bumped gen + deleted)", Fields{"namespace": ns, "key": key, "newGen": newGen})
	}
	return nil
}

func (s *cacheStore) EvictAll(ctx context.Context, ns string) error {
	var errs []error
	m := s.registry(ns)
	m.Range(func(key string, _ struct{}) bool {
		if err := s.Evict(ctx, ns, key); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	if pd, ok := s.provider.(pr.PrefixDeleter); ok {
		n, err := pd.DelPrefix(ctx, storageKey(ns, ""))
		if err != nil {
			errs = append(errs, fmt.Errorf("evict namespace %s: %w", ns, err))
		} else if n > 0 {
			s.log.Debug("deleted foreign namespace entries", Fields{"namespace": ns, "count": n})
		}
	}
	return errors.Join(errs...)
}

func (s *cacheStore) Clear(ctx context.Context) error {
	var errs []error
	for _, ns := range s.Namespaces() {
		if err := s.EvictAll(ctx, ns); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *cacheStore) Close(ctx context.Context) error {
	err := s.provider.Close(ctx)
	if s.ownGens {
		err = errors.Join(err, s.gens.Close(ctx))
	}
	return err
}

// noopCacheStore is used when caching is disabled: every read misses and
// writes are dropped.
type noopCacheStore struct {
	namespaces []string
}

// NewNoopCacheStore returns a CacheStore that never stores anything.
func NewNoopCacheStore(namespaces ...string) CacheStore {
	ns := append([]string(nil), namespaces...)
	sort.Strings(ns)
	return noopCacheStore{namespaces: ns}
}

func (noopCacheStore) Get(context.Context, string, string) ([]byte, bool, error) {
	return nil, false, nil
}
func (noopCacheStore) Put(context.Context, string, string, []byte) error { return nil }
func (noopCacheStore) Version(context.Context, string, string) (uint64, error) {
	return 0, nil
}
func (noopCacheStore) PutVersioned(context.Context, string, string, []byte, uint64) error {
	return nil
}
func (noopCacheStore) Evict(context.Context, string, string) error { return nil }
func (noopCacheStore) EvictAll(context.Context, string) error      { return nil }
func (noopCacheStore) Clear(context.Context) error                 { return nil }
func (n noopCacheStore) Namespaces() []string                      { return append([]string(nil), n.namespaces...) }
func (noopCacheStore) Name() string                                { return "noop" }
func (noopCacheStore) Enabled() bool                               { return false }
func (noopCacheStore) Close(context.Context) error                 { return nil }
