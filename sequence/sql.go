package sequence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
)

type sequenceRow struct {
	bun.BaseModel `bun:"table:sequences"`

	Name string `bun:"name,pk"`
	Seq  int64  `bun:"seq,notnull"`
}

// SQL keeps counters in a "sequences" table. It works with any bun dialect whose
// database supports INSERT ... ON CONFLICT ... RETURNING (sqlite >= 3.35, postgres).
type SQL struct {
	db   *bun.DB
	seed int64
}

var _ Counter = (*SQL)(nil)

func NewSQL(db *bun.DB, seed int64) *SQL {
	return &SQL{db: db, seed: seed}
}

// CreateTable creates the sequences table if it does not exist.
func (s *SQL) CreateTable(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*sequenceRow)(nil)).IfNotExists().Exec(ctx)
	return err
}

func (s *SQL) Next(ctx context.Context, name string) (int64, error) {
	var v int64
	err := s.db.NewRaw(
		"INSERT INTO sequences (name, seq) VALUES (?, ?) "+
			"ON CONFLICT (name) DO UPDATE SET seq = sequences.seq + 1 RETURNING seq",
		name, s.seed+1,
	).Scan(ctx, &v)
	if err != nil {
		return 0, fail(name, "next", err)
	}
	return v, nil
}

func (s *SQL) Current(ctx context.Context, name string) (int64, error) {
	var row sequenceRow
	err := s.db.NewSelect().Model(&row).Where("name = ?", name).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fail(name, "current", err)
	}
	return row.Seq, nil
}

// Close does not close the shared *bun.DB.
func (s *SQL) Close(context.Context) error { return nil }
