// Package storetest holds the behaviour every RecordStore must share.
package storetest

import (
	"context"
	"testing"

	rc "github.com/unkn0wn-root/recordcache"
)

func user(id int64, username string) rc.User {
	return rc.User{
		ID:        id,
		FirstName: "First",
		LastName:  "Last",
		Email:     username + "@example.com",
		Username:  username,
		Password:  "secret",
		BirthDate: "1990-01-01",
	}
}

// Run exercises s, which must start empty.
func Run(t *testing.T, s rc.RecordStore) {
	t.Helper()
	ctx := context.Background()

	if n, err := s.Count(ctx); err != nil || n != 0 {
		t.Fatalf("Count on empty store: n=%d err=%v", n, err)
	}
	if _, ok, err := s.FindByID(ctx, 101); ok || err != nil {
		t.Fatalf("FindByID on empty store: ok=%v err=%v", ok, err)
	}
	if all, err := s.FindAll(ctx); err != nil || len(all) != 0 {
		t.Fatalf("FindAll on empty store: %v err=%v", all, err)
	}

	// inserted out of order; FindAll must sort by id
	for _, u := range []rc.User{user(103, "c"), user(101, "a"), user(102, "b")} {
		if err := s.Save(ctx, u); err != nil {
			t.Fatalf("Save %d: %v", u.ID, err)
		}
	}

	got, ok, err := s.FindByID(ctx, 101)
	if err != nil || !ok {
		t.Fatalf("FindByID: ok=%v err=%v", ok, err)
	}
	if got != user(101, "a") {
		t.Fatalf("FindByID mismatch: %+v", got)
	}

	all, err := s.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(all) != 3 || all[0].ID != 101 || all[1].ID != 102 || all[2].ID != 103 {
		t.Fatalf("FindAll order: %+v", all)
	}
	if n, _ := s.Count(ctx); n != 3 {
		t.Fatalf("Count: %d", n)
	}

	// Save replaces
	upd := user(102, "b2")
	upd.BirthDate = ""
	if err := s.Save(ctx, upd); err != nil {
		t.Fatalf("Save update: %v", err)
	}
	if got, _, _ := s.FindByID(ctx, 102); got != upd {
		t.Fatalf("update not persisted: %+v", got)
	}
	if n, _ := s.Count(ctx); n != 3 {
		t.Fatalf("Count after upsert: %d", n)
	}

	if ok, err := s.ExistsByID(ctx, 103); !ok || err != nil {
		t.Fatalf("ExistsByID: ok=%v err=%v", ok, err)
	}
	if err := s.DeleteByID(ctx, 103); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	if ok, _ := s.ExistsByID(ctx, 103); ok {
		t.Fatalf("deleted record still exists")
	}
	if _, ok, _ := s.FindByID(ctx, 103); ok {
		t.Fatalf("deleted record still found")
	}
	if n, _ := s.Count(ctx); n != 2 {
		t.Fatalf("Count after delete: %d", n)
	}
}
