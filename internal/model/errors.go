package model

import (
	"errors"
	"fmt"
)

// NotFoundError reports an operation on an unknown sentence id. A correct
// caller never produces one; treat it as a defect, not a runtime condition.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("sentence %q not found", e.ID)
}

// ValidationError reports a broken timeline invariant.
type ValidationError struct {
	ID     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("sentence %q: %s", e.ID, e.Reason)
}

var (
	// ErrBadPermutation is returned by Reorder when the new ordering is not
	// an exact permutation of the existing ids.
	ErrBadPermutation = errors.New("order is not a permutation of existing sentence ids")

	// ErrMergeTooFew is returned by Merge with fewer than two ids.
	ErrMergeTooFew = errors.New("merge needs at least two sentences")
)
