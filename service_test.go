package recordcache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	rc "github.com/unkn0wn-root/recordcache"
	pr "github.com/unkn0wn-root/recordcache/provider"
	"github.com/unkn0wn-root/recordcache/provider/bigcache"
	"github.com/unkn0wn-root/recordcache/provider/memory"
	"github.com/unkn0wn-root/recordcache/provider/ristretto"
	"github.com/unkn0wn-root/recordcache/provider/sturdyc"
	"github.com/unkn0wn-root/recordcache/sequence"
	"github.com/unkn0wn-root/recordcache/store/memstore"
)

// countingStore counts reads and lets a test run code in the middle of FindByID.
type countingStore struct {
	rc.RecordStore
	reads     atomic.Int64
	duringGet func(id int64)
}

func (s *countingStore) FindByID(ctx context.Context, id int64) (rc.User, bool, error) {
	s.reads.Add(1)
	u, ok, err := s.RecordStore.FindByID(ctx, id)
	if f := s.duringGet; f != nil {
		s.duringGet = nil
		f(id)
	}
	return u, ok, err
}

func (s *countingStore) FindAll(ctx context.Context) ([]rc.User, error) {
	s.reads.Add(1)
	return s.RecordStore.FindAll(ctx)
}

type failingCounter struct{ err error }

func (c failingCounter) Next(context.Context, string) (int64, error)    { return 0, c.err }
func (c failingCounter) Current(context.Context, string) (int64, error) { return 0, c.err }
func (c failingCounter) Close(context.Context) error                    { return nil }

type failingProvider struct{ *memory.Provider }

func (failingProvider) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}

type fixture struct {
	svc     rc.Service
	store   *countingStore
	cache   rc.CacheStore
	metrics *rc.Metrics
}

func newFixture(t *testing.T, mod func(*rc.Options)) *fixture {
	t.Helper()
	store := &countingStore{RecordStore: memstore.New()}
	cache, err := rc.NewCacheStore(rc.CacheOptions{
		Provider:   memory.New(),
		Namespaces: []string{rc.DefaultNamespace, rc.DefaultCollectionNamespace},
	})
	if err != nil {
		t.Fatalf("NewCacheStore: %v", err)
	}
	opts := rc.Options{
		Store:    store,
		Cache:    cache,
		Sequence: sequence.NewMemory(rc.DefaultSequenceSeed),
		Metrics:  rc.NewMetrics(),
	}
	if mod != nil {
		mod(&opts)
	}
	svc, err := rc.New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{svc: svc, store: store, cache: opts.Cache, metrics: opts.Metrics}
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := rc.New(rc.Options{}); err == nil {
		t.Fatalf("expected error without store")
	}
}

func TestJohnDoeScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	created, err := f.svc.Create(ctx, rc.User{
		FirstName: "John",
		LastName:  "Doe",
		Username:  "johndoe",
		Email:     "john@example.com",
		Password:  "secret",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID != 101 {
		t.Fatalf("expected first id 101, got %d", created.ID)
	}

	got, err := f.svc.GetByID(ctx, created.ID)
	if err != nil || got != created {
		t.Fatalf("GetByID: %+v err=%v", got, err)
	}
	if s := f.metrics.Stats(rc.DefaultNamespace); s.Hits != 1 || s.Misses != 0 {
		t.Fatalf("expected one hit: %+v", s)
	}

	if _, err := f.svc.Update(ctx, created.ID, rc.User{Username: "johnny", Email: "john.updated@example.com"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err = f.svc.GetByID(ctx, created.ID)
	if err != nil || got.Username != "johnny" || got.Email != "john.updated@example.com" {
		t.Fatalf("GetByID after update: %+v err=%v", got, err)
	}

	if err := f.svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = f.svc.GetByID(ctx, created.ID)
	var nf *rc.NotFoundError
	if !errors.As(err, &nf) || nf.ID != created.ID {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}

func TestCreateThenGetIsServedFromCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	u, err := f.svc.Create(ctx, rc.User{ID: 9999, Username: "a"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == 9999 {
		t.Fatalf("draft id must be ignored")
	}
	before := f.store.reads.Load()
	if _, err := f.svc.GetByID(ctx, u.ID); err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if f.store.reads.Load() != before {
		t.Fatalf("expected zero store reads on cache hit")
	}
	if s := f.metrics.Stats(rc.DefaultNamespace); s.Hits != 1 || s.Total != 1 {
		t.Fatalf("metrics: %+v", s)
	}
}

func TestCreateThenGetHitsOnEveryProvider(t *testing.T) {
	ctx := context.Background()
	providers := map[string]func() (pr.Provider, error){
		"memory": func() (pr.Provider, error) { return memory.New(), nil },
		"ristretto": func() (pr.Provider, error) {
			return ristretto.New(ristretto.DefaultConfig(10_000))
		},
		"sturdyc": func() (pr.Provider, error) {
			return sturdyc.New(sturdyc.Config{Capacity: 10_000, TTL: time.Minute})
		},
		"bigcache": func() (pr.Provider, error) {
			return bigcache.New(ctx, bigcache.Config{LifeWindow: time.Minute, MaxEntriesInWindow: 10_000})
		},
	}
	for name, newProvider := range providers {
		t.Run(name, func(t *testing.T) {
			p, err := newProvider()
			if err != nil {
				t.Fatalf("provider: %v", err)
			}
			f := newFixture(t, func(o *rc.Options) {
				c, err := rc.NewCacheStore(rc.CacheOptions{Provider: p})
				if err != nil {
					t.Fatalf("NewCacheStore: %v", err)
				}
				o.Cache = c
			})
			defer f.cache.Close(ctx)

			const runs = 200
			for i := 0; i < runs; i++ {
				u, err := f.svc.Create(ctx, rc.User{Username: "u"})
				if err != nil {
					t.Fatalf("Create: %v", err)
				}
				before := f.store.reads.Load()
				got, err := f.svc.GetByID(ctx, u.ID)
				if err != nil || got != u {
					t.Fatalf("GetByID: %+v err=%v", got, err)
				}
				if f.store.reads.Load() != before {
					t.Fatalf("run %d: read after create went to the store", i)
				}
			}
			if s := f.metrics.Stats(rc.DefaultNamespace); s.Hits != runs || s.Misses != 0 {
				t.Fatalf("metrics: %+v", s)
			}
		})
	}
}

// collectionEvictFails fails to invalidate the collection entry.
type collectionEvictFails struct {
	rc.CacheStore
}

func (c collectionEvictFails) Evict(ctx context.Context, ns, key string) error {
	if ns == rc.DefaultCollectionNamespace {
		return &rc.InvalidateError{Namespace: ns, Key: key, BumpErr: errors.New("bump"), DelErr: errors.New("del")}
	}
	return c.CacheStore.Evict(ctx, ns, key)
}

func TestCreatePopulatesRecordWhenCollectionEvictFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(o *rc.Options) { o.Cache = collectionEvictFails{o.Cache} })

	u, err := f.svc.Create(ctx, rc.User{Username: "a"})
	var ie *rc.InvalidateError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *InvalidateError, got %v", err)
	}
	if u.ID == 0 {
		t.Fatalf("the stored record must be returned with the error")
	}
	raw, ok, err := f.cache.Get(ctx, rc.DefaultNamespace, "101")
	if err != nil || !ok || len(raw) == 0 {
		t.Fatalf("record entry must still be written: ok=%v err=%v", ok, err)
	}
	before := f.store.reads.Load()
	if _, err := f.svc.GetByID(ctx, u.ID); err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if f.store.reads.Load() != before {
		t.Fatalf("expected a cache hit")
	}
}

func TestGetAllCachesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	a, _ := f.svc.Create(ctx, rc.User{Username: "a"})
	b, _ := f.svc.Create(ctx, rc.User{Username: "b"})

	all, err := f.svc.GetAll(ctx)
	if err != nil || len(all) != 2 || all[0].ID != a.ID || all[1].ID != b.ID {
		t.Fatalf("GetAll: %+v err=%v", all, err)
	}
	reads := f.store.reads.Load()
	if _, err := f.svc.GetAll(ctx); err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if f.store.reads.Load() != reads {
		t.Fatalf("second GetAll must be a cache hit")
	}
	if s := f.metrics.Stats(rc.DefaultCollectionNamespace); s.Hits != 1 || s.Misses != 1 {
		t.Fatalf("collection metrics: %+v", s)
	}

	if _, err := f.svc.Update(ctx, a.ID, rc.User{Username: "a2"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	all, _ = f.svc.GetAll(ctx)
	if all[0].Username != "a2" {
		t.Fatalf("stale collection after update: %+v", all)
	}

	c, _ := f.svc.Create(ctx, rc.User{Username: "c"})
	all, _ = f.svc.GetAll(ctx)
	if len(all) != 3 || all[2].ID != c.ID {
		t.Fatalf("stale collection after create: %+v", all)
	}

	_ = f.svc.Delete(ctx, b.ID)
	all, _ = f.svc.GetAll(ctx)
	if len(all) != 2 {
		t.Fatalf("stale collection after delete: %+v", all)
	}
}

func TestGetAllEmptyIsNotNil(t *testing.T) {
	all, err := newFixture(t, nil).svc.GetAll(context.Background())
	if err != nil || all == nil || len(all) != 0 {
		t.Fatalf("GetAll on empty store: %#v err=%v", all, err)
	}
}

func TestDeleteLeavesNoCacheEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	u, _ := f.svc.Create(ctx, rc.User{Username: "gone"})
	if err := f.svc.Delete(ctx, u.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := f.cache.Get(ctx, rc.DefaultNamespace, "101"); ok {
		t.Fatalf("cache still holds the deleted record")
	}
	if _, err := f.svc.GetByID(ctx, u.ID); !errors.Is(err, rc.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := f.svc.Delete(ctx, u.ID); !errors.Is(err, rc.ErrNotFound) {
		t.Fatalf("second Delete: expected ErrNotFound, got %v", err)
	}
}

func TestUpdateMissingRecord(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Update(context.Background(), 404, rc.User{Username: "x"})
	if !errors.Is(err, rc.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if n, _ := f.store.Count(context.Background()); n != 0 {
		t.Fatalf("Update must not create records")
	}
}

func TestSequenceFailureIsReturnedUnchanged(t *testing.T) {
	ctx := context.Background()
	seqErr := &sequence.Error{Name: rc.DefaultSequenceName, Op: "next", Err: errors.New("redis down")}
	f := newFixture(t, func(o *rc.Options) { o.Sequence = failingCounter{err: seqErr} })

	_, err := f.svc.Create(ctx, rc.User{Username: "x"})
	if err != error(seqErr) {
		t.Fatalf("expected the sequence error value, got %v", err)
	}
	if !errors.Is(err, rc.ErrSequenceUnavailable) {
		t.Fatalf("expected ErrSequenceUnavailable")
	}
	if n, _ := f.store.Count(ctx); n != 0 {
		t.Fatalf("nothing may be saved without an id, count=%d", n)
	}
}

func TestStaleReadIsNotPublished(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	u, _ := f.svc.Create(ctx, rc.User{Username: "before"})
	// drop the entry Create wrote so the next read goes to the store
	_ = f.cache.Evict(ctx, rc.DefaultNamespace, "101")

	// the update lands after the reader fetched "before" but before it publishes
	f.store.duringGet = func(id int64) {
		if _, err := f.svc.Update(ctx, id, rc.User{Username: "after"}); err != nil {
			t.Errorf("Update: %v", err)
		}
	}
	got, err := f.svc.GetByID(ctx, u.ID)
	if err != nil || got.Username != "before" {
		t.Fatalf("reader sees its own store read: %+v err=%v", got, err)
	}

	got, _ = f.svc.GetByID(ctx, u.ID)
	if got.Username != "after" {
		t.Fatalf("stale value was published to the cache: %+v", got)
	}
}

func TestCacheReadErrorFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(o *rc.Options) {
		c, _ := rc.NewCacheStore(rc.CacheOptions{Provider: failingProvider{memory.New()}})
		o.Cache = c
	})

	u, _ := f.svc.Create(ctx, rc.User{Username: "a"})
	got, err := f.svc.GetByID(ctx, u.ID)
	if err != nil || got != u {
		t.Fatalf("GetByID: %+v err=%v", got, err)
	}
	if s := f.metrics.Stats(rc.DefaultNamespace); s.Misses != 1 || s.Hits != 0 {
		t.Fatalf("cache failure must count as miss: %+v", s)
	}
}

func TestDisabledCacheCountsMisses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(o *rc.Options) {
		o.Cache = rc.NewNoopCacheStore(rc.DefaultNamespace, rc.DefaultCollectionNamespace)
	})

	u, _ := f.svc.Create(ctx, rc.User{Username: "a"})
	for i := 0; i < 3; i++ {
		if _, err := f.svc.GetByID(ctx, u.ID); err != nil {
			t.Fatalf("GetByID: %v", err)
		}
	}
	if f.store.reads.Load() != 3 {
		t.Fatalf("every read must hit the store, got %d", f.store.reads.Load())
	}
	if s := f.metrics.Stats(rc.DefaultNamespace); s.Misses != 3 || s.Hits != 0 {
		t.Fatalf("metrics: %+v", s)
	}
}

func TestConcurrentCreatesGetDistinctIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	const n = 64
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := f.svc.Create(ctx, rc.User{Username: "u"})
			if err != nil {
				t.Errorf("Create: %v", err)
				return
			}
			ids <- u.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		if seen[id] || id <= rc.DefaultSequenceSeed || id > rc.DefaultSequenceSeed+n {
			t.Fatalf("duplicate or out-of-range id %d", id)
		}
		seen[id] = true
	}
	all, _ := f.svc.GetAll(ctx)
	if len(all) != n {
		t.Fatalf("GetAll after concurrent creates: %d", len(all))
	}
}

func TestInstrumentedStackPassesThrough(t *testing.T) {
	ctx := context.Background()
	var ops []string
	in := rc.NewInstrumentation(rc.InstrumentationOptions{
		Observer: rc.ObserverFunc(func(o rc.Observation) { ops = append(ops, o.Operation) }),
	})
	f := newFixture(t, func(o *rc.Options) {
		c, _ := rc.NewCacheStore(rc.CacheOptions{Provider: memory.New()})
		o.Cache = rc.InstrumentCacheStore(c, in)
	})
	svc := rc.InstrumentService(f.svc, in)

	_, err := svc.GetByID(ctx, 1)
	if !errors.Is(err, rc.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	want := []string{"CacheStore.Get", "CacheStore.Version", "UserService.GetByID"}
	if len(ops) != len(want) {
		t.Fatalf("ops: %v", ops)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("ops: %v want %v", ops, want)
		}
	}
}
