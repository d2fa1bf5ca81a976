// Package redisstore keeps records in Redis: one msgpack document per record
// plus a sorted set of ids (score = id) that orders FindAll.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	rc "github.com/unkn0wn-root/recordcache"
)

type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ rc.RecordStore = (*Store)(nil)

type Config struct {
	Client redis.UniversalClient
	// Prefix for document keys and the id index. Defaults to "users:".
	Prefix string
}

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, errors.New("redisstore: nil client")
	}
	p := cfg.Prefix
	if p == "" {
		p = "users:"
	}
	return &Store{rdb: cfg.Client, prefix: p}, nil
}

func (s *Store) docKey(id int64) string { return s.prefix + "doc:" + strconv.FormatInt(id, 10) }
func (s *Store) indexKey() string       { return s.prefix + "ids" }

func (s *Store) FindByID(ctx context.Context, id int64) (rc.User, bool, error) {
	b, err := s.rdb.Get(ctx, s.docKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return rc.User{}, false, nil
	}
	if err != nil {
		return rc.User{}, false, rc.NewStoreError("find", err)
	}
	var u rc.User
	if err := msgpack.Unmarshal(b, &u); err != nil {
		return rc.User{}, false, rc.NewStoreError("find", fmt.Errorf("decode %d: %w", id, err))
	}
	return u, true, nil
}

func (s *Store) FindAll(ctx context.Context) ([]rc.User, error) {
	ids, err := s.rdb.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, rc.NewStoreError("find all", err)
	}
	if len(ids) == 0 {
		return []rc.User{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.prefix + "doc:" + id
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, rc.NewStoreError("find all", err)
	}
	out := make([]rc.User, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// index entry without a document: deleted between ZRANGE and MGET
			continue
		}
		var u rc.User
		if err := msgpack.Unmarshal([]byte(str), &u); err != nil {
			return nil, rc.NewStoreError("find all", fmt.Errorf("decode %s: %w", ids[i], err))
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *Store) Save(ctx context.Context, u rc.User) error {
	b, err := msgpack.Marshal(u)
	if err != nil {
		return rc.NewStoreError("save", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.docKey(u.ID), b, 0)
		p.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(u.ID), Member: strconv.FormatInt(u.ID, 10)})
		return nil
	})
	return rc.NewStoreError("save", err)
}

func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.docKey(id))
		p.ZRem(ctx, s.indexKey(), strconv.FormatInt(id, 10))
		return nil
	})
	return rc.NewStoreError("delete", err)
}

func (s *Store) ExistsByID(ctx context.Context, id int64) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.docKey(id)).Result()
	if err != nil {
		return false, rc.NewStoreError("exists", err)
	}
	return n == 1, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.rdb.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, rc.NewStoreError("count", err)
	}
	return n, nil
}
