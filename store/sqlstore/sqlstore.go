// Package sqlstore keeps records in a SQL "users" table through uptrace/bun.
// sqlite3 (mattn/go-sqlite3) and postgres (lib/pq) are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	rc "github.com/unkn0wn-root/recordcache"
)

// Open connects to driver ("sqlite3" or "postgres") and returns a bun.DB
// with the matching dialect.
func Open(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case "sqlite3", "sqlite":
		sqldb, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, err
		}
		// sqlite serialises writers; one connection avoids SQLITE_BUSY under load
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case "postgres", "postgresql":
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

type Store struct {
	db *bun.DB
}

var _ rc.RecordStore = (*Store)(nil)

func New(db *bun.DB) *Store { return &Store{db: db} }

// CreateTable creates the users table if it does not exist.
func (s *Store) CreateTable(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*rc.User)(nil)).IfNotExists().Exec(ctx)
	return err
}

func (s *Store) FindByID(ctx context.Context, id int64) (rc.User, bool, error) {
	var u rc.User
	err := s.db.NewSelect().Model(&u).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return rc.User{}, false, nil
	}
	if err != nil {
		return rc.User{}, false, rc.NewStoreError("find", err)
	}
	return u, true, nil
}

func (s *Store) FindAll(ctx context.Context) ([]rc.User, error) {
	users := make([]rc.User, 0)
	if err := s.db.NewSelect().Model(&users).Order("id ASC").Scan(ctx); err != nil {
		return nil, rc.NewStoreError("find all", err)
	}
	return users, nil
}

func (s *Store) Save(ctx context.Context, u rc.User) error {
	_, err := s.db.NewInsert().
		Model(&u).
		On("CONFLICT (id) DO UPDATE").
		Set("first_name = EXCLUDED.first_name").
		Set("last_name = EXCLUDED.last_name").
		Set("maiden_name = EXCLUDED.maiden_name").
		Set("gender = EXCLUDED.gender").
		Set("email = EXCLUDED.email").
		Set("phone = EXCLUDED.phone").
		Set("username = EXCLUDED.username").
		Set("password = EXCLUDED.password").
		Set("birth_date = EXCLUDED.birth_date").
		Exec(ctx)
	return rc.NewStoreError("save", err)
}

func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	_, err := s.db.NewDelete().Model((*rc.User)(nil)).Where("id = ?", id).Exec(ctx)
	return rc.NewStoreError("delete", err)
}

func (s *Store) ExistsByID(ctx context.Context, id int64) (bool, error) {
	ok, err := s.db.NewSelect().Model((*rc.User)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return false, rc.NewStoreError("exists", err)
	}
	return ok, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.db.NewSelect().Model((*rc.User)(nil)).Count(ctx)
	if err != nil {
		return 0, rc.NewStoreError("count", err)
	}
	return int64(n), nil
}
