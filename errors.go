package recordcache

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/recordcache/sequence"
)

var (
	// ErrNotFound is matched by errors reporting an id absent from the RecordStore.
	ErrNotFound = errors.New("record not found")
	// ErrStoreUnavailable is matched by RecordStore I/O failures.
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrSequenceUnavailable is matched by SequenceCounter failures.
	ErrSequenceUnavailable = sequence.ErrUnavailable
)

// NotFoundError reports a missing record.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("User not found with ID: %d", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// StoreError wraps a RecordStore backend failure.
type StoreError struct {
	Op  string
	Err error
}

// NewStoreError wraps err, or returns nil when err is nil.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("record store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// InvalidateError is returned when a cache entry could not be invalidated:
// both the generation bump and the delete failed.
type InvalidateError struct {
	Namespace string
	Key       string
	BumpErr   error
	DelErr    error
}

func (e *InvalidateError) Error() string {
	switch {
	case e.BumpErr != nil && e.DelErr != nil:
		return fmt.Sprintf("invalidate %s:%s failed: gen bump and delete failed: bump=%v; delete=%v",
			e.Namespace, e.Key, e.BumpErr, e.DelErr)
	case e.BumpErr != nil:
		return fmt.Sprintf("invalidate %s:%s: gen bump failed: %v", e.Namespace, e.Key, e.BumpErr)
	case e.DelErr != nil:
		return fmt.Sprintf("invalidate %s:%s: delete failed: %v", e.Namespace, e.Key, e.DelErr)
	default:
		return fmt.Sprintf("invalidate %s:%s: unknown error", e.Namespace, e.Key)
	}
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.BumpErr != nil {
		errs = append(errs, e.BumpErr)
	}
	if e.DelErr != nil {
		errs = append(errs, e.DelErr)
	}
	return errs
}

// Outcome classifies the result of an operation for observability.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeDomainError Outcome = "domain_error"
	OutcomeError       Outcome = "error"
)

// Classify maps err onto an Outcome. Only ErrNotFound is a domain error.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrNotFound):
		return OutcomeDomainError
	default:
		return OutcomeError
	}
}
