package redisstore

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	rc "github.com/unkn0wn-root/recordcache"
	"github.com/unkn0wn-root/recordcache/internal/storetest"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s, err := New(Config{Client: rdb})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, mr
}

func TestRedisStoreContract(t *testing.T) {
	s, _ := newTestStore(t)
	storetest.Run(t, s)
}

func TestRedisStoreLayout(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	_ = s.Save(ctx, rc.User{ID: 101, Username: "jdoe"})
	if !mr.Exists("users:doc:101") {
		t.Fatalf("document key missing: %v", mr.Keys())
	}
	members, err := mr.ZMembers("users:ids")
	if err != nil || len(members) != 1 || members[0] != "101" {
		t.Fatalf("index: %v err=%v", members, err)
	}
}

func TestRedisStoreSkipsDanglingIndexEntries(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	_ = s.Save(ctx, rc.User{ID: 1})
	_ = s.Save(ctx, rc.User{ID: 2})
	mr.Del("users:doc:1")

	all, err := s.FindAll(ctx)
	if err != nil || len(all) != 1 || all[0].ID != 2 {
		t.Fatalf("FindAll: %+v err=%v", all, err)
	}
}

func TestRedisStoreOutage(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()
	_, _, err := s.FindByID(context.Background(), 1)
	if !errors.Is(err, rc.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	var se *rc.StoreError
	if !errors.As(err, &se) || se.Op != "find" {
		t.Fatalf("expected *StoreError{Op: find}, got %#v", err)
	}
}
