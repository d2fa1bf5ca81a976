package recordcache

import (
	"errors"
	"fmt"
	"testing"

	"github.com/unkn0wn-root/recordcache/sequence"
)

func TestNotFoundError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &NotFoundError{ID: 42})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("NotFoundError must match ErrNotFound")
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.ID != 42 {
		t.Fatalf("errors.As: %v", err)
	}
	if got := (&NotFoundError{ID: 42}).Error(); got != "User not found with ID: 42" {
		t.Fatalf("message: %q", got)
	}
}

func TestStoreError(t *testing.T) {
	if NewStoreError("save", nil) != nil {
		t.Fatalf("nil cause must yield nil")
	}
	cause := errors.New("connection refused")
	err := NewStoreError("save", cause)
	if !errors.Is(err, ErrStoreUnavailable) || !errors.Is(err, cause) {
		t.Fatalf("StoreError must match sentinel and cause: %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("StoreError must not match ErrNotFound")
	}
}

func TestClassify(t *testing.T) {
	seqErr := &sequence.Error{Name: "user_sequence", Op: "next", Err: errors.New("down")}
	cases := []struct {
		err  error
		want Outcome
	}{
		{nil, OutcomeSuccess},
		{&NotFoundError{ID: 1}, OutcomeDomainError},
		{NewStoreError("find", errors.New("x")), OutcomeError},
		{seqErr, OutcomeError},
		{&InvalidateError{Namespace: "users", Key: "1", BumpErr: errors.New("a"), DelErr: errors.New("b")}, OutcomeError},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
	if !errors.Is(seqErr, ErrSequenceUnavailable) {
		t.Fatalf("sequence errors must match ErrSequenceUnavailable")
	}
}
