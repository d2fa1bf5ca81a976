package recordcache

import (
	"context"
	"errors"
	"strconv"

	"github.com/unkn0wn-root/recordcache/codec"
)

type service struct {
	store     RecordStore
	cache     CacheStore
	seq       SequenceCounter
	metrics   *Metrics
	log       Logger
	codec     codec.Codec[User]
	listCodec codec.Codec[[]User]

	seqName string
	ns      string
	allNS   string
}

var _ Service = (*service)(nil)

func idKey(id int64) string { return strconv.FormatInt(id, 10) }

// lookup reads and decodes a cache entry. Cache failures are logged and
// reported as a miss: the record store stays the source of truth.
func lookup[V any](ctx context.Context, s *service, ns, key string, c codec.Codec[V]) (V, bool) {
	var zero V
	raw, ok, err := s.cache.Get(ctx, ns, key)
	if err != nil {
		s.log.Warn("cache read failed, falling back to store", Fields{"namespace": ns, "key": key, "err": err})
		return zero, false
	}
	if !ok {
		return zero, false
	}
	v, err := c.Decode(raw)
	if err != nil {
		s.log.Warn("cache entry undecodable, evicting", Fields{"namespace": ns, "key": key, "err": err})
		_ = s.cache.Evict(ctx, ns, key)
		return zero, false
	}
	return v, true
}

// populate publishes v unless the entry was evicted since observed.
func populate[V any](ctx context.Context, s *service, ns, key string, c codec.Codec[V], v V, observed uint64) {
	b, err := c.Encode(v)
	if err != nil {
		s.log.Warn("cache encode failed", Fields{"namespace": ns, "key": key, "err": err})
		return
	}
	if err := s.cache.PutVersioned(ctx, ns, key, b, observed); err != nil {
		s.log.Warn("cache populate failed", Fields{"namespace": ns, "key": key, "err": err})
	}
}

func (s *service) putUser(ctx context.Context, u User) {
	key := idKey(u.ID)
	b, err := s.codec.Encode(u)
	if err != nil {
		s.log.Warn("cache encode failed", Fields{"namespace": s.ns, "key": key, "err": err})
		return
	}
	if err := s.cache.Put(ctx, s.ns, key, b); err != nil {
		s.log.Warn("cache put failed", Fields{"namespace": s.ns, "key": key, "err": err})
	}
}

func (s *service) GetByID(ctx context.Context, id int64) (User, error) {
	key := idKey(id)
	if u, ok := lookup(ctx, s, s.ns, key, s.codec); ok {
		s.metrics.RecordHit(s.ns)
		return u, nil
	}
	s.metrics.RecordMiss(s.ns)

	// snapshot before the store read
	obs, verr := s.cache.Version(ctx, s.ns, key)
	u, found, err := s.store.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !found {
		return User{}, &NotFoundError{ID: id}
	}
	if verr != nil {
		s.log.Warn("cache version unavailable, skipping populate", Fields{"namespace": s.ns, "key": key, "err": verr})
		return u, nil
	}
	populate(ctx, s, s.ns, key, s.codec, u, obs)
	return u, nil
}

func (s *service) GetAll(ctx context.Context) ([]User, error) {
	if users, ok := lookup(ctx, s, s.allNS, collectionKey, s.listCodec); ok {
		s.metrics.RecordHit(s.allNS)
		return users, nil
	}
	s.metrics.RecordMiss(s.allNS)

	obs, verr := s.cache.Version(ctx, s.allNS, collectionKey)
	users, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []User{}
	}
	if verr != nil {
		s.log.Warn("cache version unavailable, skipping populate", Fields{"namespace": s.allNS, "key": collectionKey, "err": verr})
		return users, nil
	}
	populate(ctx, s, s.allNS, collectionKey, s.listCodec, users, obs)
	return users, nil
}

func (s *service) Create(ctx context.Context, draft User) (User, error) {
	id, err := s.seq.Next(ctx, s.seqName)
	if err != nil {
		return User{}, err
	}
	u := User{ID: id}.applyDraft(draft)
	if err := s.store.Save(ctx, u); err != nil {
		return User{}, err
	}
	allErr := s.cache.Evict(ctx, s.allNS, collectionKey)
	s.putUser(ctx, u)
	return u, allErr
}

func (s *service) Update(ctx context.Context, id int64, draft User) (User, error) {
	cur, found, err := s.store.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !found {
		return User{}, &NotFoundError{ID: id}
	}
	u := cur.applyDraft(draft)
	if err := s.store.Save(ctx, u); err != nil {
		return User{}, err
	}
	evictErr := s.cache.Evict(ctx, s.ns, idKey(id))
	s.putUser(ctx, u)
	allErr := s.cache.Evict(ctx, s.allNS, collectionKey)
	return u, errors.Join(evictErr, allErr)
}

func (s *service) Delete(ctx context.Context, id int64) error {
	ok, err := s.store.ExistsByID(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return &NotFoundError{ID: id}
	}
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return err
	}
	return errors.Join(
		s.cache.Evict(ctx, s.ns, idKey(id)),
		s.cache.Evict(ctx, s.allNS, collectionKey),
	)
}
