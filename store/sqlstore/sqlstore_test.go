package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	rc "github.com/unkn0wn-root/recordcache"
	"github.com/unkn0wn-root/recordcache/internal/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open("sqlite3", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	s := New(db)
	if err := s.CreateTable(context.Background()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	return s
}

func TestSQLStoreContract(t *testing.T) {
	storetest.Run(t, newTestStore(t))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", ""); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestSQLStoreClosedDB(t *testing.T) {
	s := newTestStore(t)
	_ = s.db.Close()
	if _, err := s.Count(context.Background()); !errors.Is(err, rc.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
