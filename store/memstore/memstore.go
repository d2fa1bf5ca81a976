// Package memstore is an in-process RecordStore for tests and single-node runs.
package memstore

import (
	"context"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"

	rc "github.com/unkn0wn-root/recordcache"
)

type Store struct {
	m *xsync.MapOf[int64, rc.User]
}

var _ rc.RecordStore = (*Store)(nil)

func New() *Store {
	return &Store{m: xsync.NewMapOf[int64, rc.User]()}
}

func (s *Store) FindByID(ctx context.Context, id int64) (rc.User, bool, error) {
	if err := ctx.Err(); err != nil {
		return rc.User{}, false, rc.NewStoreError("find", err)
	}
	u, ok := s.m.Load(id)
	return u, ok, nil
}

func (s *Store) FindAll(ctx context.Context) ([]rc.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, rc.NewStoreError("find all", err)
	}
	out := make([]rc.User, 0, s.m.Size())
	s.m.Range(func(_ int64, u rc.User) bool {
		out = append(out, u)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Save(ctx context.Context, u rc.User) error {
	if err := ctx.Err(); err != nil {
		return rc.NewStoreError("save", err)
	}
	s.m.Store(u.ID, u)
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return rc.NewStoreError("delete", err)
	}
	s.m.Delete(id)
	return nil
}

func (s *Store) ExistsByID(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, rc.NewStoreError("exists", err)
	}
	_, ok := s.m.Load(id)
	return ok, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, rc.NewStoreError("count", err)
	}
	return int64(s.m.Size()), nil
}
