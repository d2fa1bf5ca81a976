// Package sequence provides named, monotonically increasing counters.
//
// A counter is created on first use with a seed S; the first Next returns S+1 and
// every later Next returns the previous result + 1. Every backend performs the
// create-if-absent and the increment in one indivisible operation:
//
//	Memory: mutex-guarded map (single process)
//	Redis:  Lua script (SET NX seed; INCR)
//	SQL:    INSERT ... ON CONFLICT DO UPDATE SET seq = seq + 1 RETURNING seq
//	Dynamo: UpdateItem SET seq = if_not_exists(seq, :seed) + :one
//
// Counters double as cache generation stores (seed 0): Current is the snapshot,
// Next is the bump.
package sequence

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable is matched (errors.Is) by every error a Counter returns.
var ErrUnavailable = errors.New("sequence unavailable")

// Counter is a set of named atomic counters living in a shared store.
type Counter interface {
	// Next atomically creates the counter (at the seed) if missing, increments it
	// and returns the new value.
	Next(ctx context.Context, name string) (int64, error)
	// Current returns the last value issued for name, or 0 if none was issued.
	Current(ctx context.Context, name string) (int64, error)
	// Close releases resources (no-op ok).
	Close(ctx context.Context) error
}

// Error reports a failed counter operation.
type Error struct {
	Name string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sequence %q: %s failed: %v", e.Name, e.Op, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnavailable}
	}
	return []error{ErrUnavailable, e.Err}
}

func fail(name, op string, err error) error {
	return &Error{Name: name, Op: op, Err: err}
}
