package usecase

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized: an anonymous caller supplied an owner-scoped filter.
	ErrUnauthorized = errors.New("authentication required for owner-scoped queries")
	// ErrForbidden: the supplied owner identity is not the caller's.
	ErrForbidden = errors.New("owner identity does not match authenticated caller")
	// ErrQueryTooBroad: no filter at all; unscoped scans are rejected.
	ErrQueryTooBroad = errors.New("query requires a sender identity, owner identity or explicit id list")
	// ErrMissingFilter: delete called without any filter.
	ErrMissingFilter = errors.New("delete requires at least one filter")
)

// OwnershipConflictError rejects a batch-link that would re-own another
// account's items. The whole batch is refused; Count is how many items
// conflicted.
type OwnershipConflictError struct {
	Count int
}

func (e *OwnershipConflictError) Error() string {
	return fmt.Sprintf("%d item(s) already owned by a different account", e.Count)
}

// ForbiddenOwnershipError rejects an explicit-id delete touching items
// owned by a different account. Nothing is deleted.
type ForbiddenOwnershipError struct {
	Count int
}

func (e *ForbiddenOwnershipError) Error() string {
	return fmt.Sprintf("cannot delete %d item(s) owned by a different account", e.Count)
}
