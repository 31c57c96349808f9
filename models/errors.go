package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrSelfOwnership rejects an entity owning itself or an owner naming
	// itself as its own beneficiary.
	ErrSelfOwnership = errors.New("owner and owned reference the same record")

	// ErrExactlyOneOwner rejects edges where both or neither of the
	// party/entity owner references were supplied.
	ErrExactlyOneOwner = errors.New("exactly one of party or entity must be set as owner")

	// ErrCircularOwnership rejects an entity-owns-entity edge that would
	// close a cycle within the structure.
	ErrCircularOwnership = errors.New("edge would create circular ownership")

	// ErrStillReferenced rejects hard deletes of entities/owners that are
	// still referenced by ownership or beneficiary edges.
	ErrStillReferenced = errors.New("record is still referenced by edges")

	// ErrInvalidDeadlineConfig rejects single/recurring deadline alerts with
	// inconsistent fields.
	ErrInvalidDeadlineConfig = errors.New("deadline type and date/pattern fields are inconsistent")

	// ErrTotalSharesBelowAllocated rejects shrinking an entity's total shares
	// below what ownership edges have already allocated.
	ErrTotalSharesBelowAllocated = errors.New("total shares cannot shrink below allocated shares")

	// ErrPercentageOrSharesRequired rejects edges supplying neither value.
	ErrPercentageOrSharesRequired = errors.New("one of percentage or shares must be supplied")
)

// OverAllocationError reports a percentage sum that would exceed 100% for a
// (structure, owned entity) pair or a succession giver.
type OverAllocationError struct {
	Scope string
	Total decimal.Decimal
}

func (e *OverAllocationError) Error() string {
	return fmt.Sprintf("ownership for %s would total %s%%, exceeding 100%%", e.Scope, e.Total.StringFixed(2))
}

// CloneError wraps any failure during a structure deep copy. The transaction
// is rolled back before it is returned, so nothing was persisted.
type CloneError struct {
	Cause error
}

func (e *CloneError) Error() string {
	return fmt.Sprintf("clone structure: %v", e.Cause)
}

func (e *CloneError) Unwrap() error {
	return e.Cause
}
