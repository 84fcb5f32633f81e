/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The serving layer maps these to user-facing responses; the engine itself
  never logs, retries or formats messages for users.

ERROR CATEGORIES:
  1. Client input errors - malformed range, unknown role or status
  2. Setup gaps - a promoter with no store/brand assignment
  3. Data integrity errors - duplicate or negative price entries
  4. Not found - only for single-entity lookups in the store layer

  "No data for this query" is NOT an error: unknown filter ids, zero visits
  and zero assignments all produce empty collections. A missing price entry
  resolves to zero.

USAGE:
  snap, err := assembler.Assemble(ctx, window, scope)
  if errors.Is(err, engine.ErrNoAssignment) {
      // surface the setup gap to the operator
  }

SEE ALSO:
  - window.go: produces MalformedRangeError
  - dashboard.go: produces NoAssignmentError
  - price.go: produces DuplicatePriceError
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMalformedRange is returned when a date range ends before it starts.
	ErrMalformedRange = errors.New("malformed range: end before start")

	// ErrNoAssignment is returned when a promoter has no store/brand assignment.
	ErrNoAssignment = errors.New("promoter has no store/brand assignment")

	// ErrUnknownRole is returned when a role name or code is not recognized.
	ErrUnknownRole = errors.New("unknown role")

	// ErrInvalidStatus is returned when a visit status is not recognized.
	ErrInvalidStatus = errors.New("invalid visit status")

	// ErrDuplicatePriceEntry is returned when two price entries share a pair.
	ErrDuplicatePriceEntry = errors.New("duplicate price entry")

	// ErrNegativePrice is returned when a price entry is below zero.
	ErrNegativePrice = errors.New("negative price")

	// ErrPricePrecision is returned when an amount has more than two decimal
	// places. Stores reject such amounts instead of rounding them.
	ErrPricePrecision = errors.New("price has more than two decimal places")

	// ErrVisitNotFound is returned by stores when a visit id does not exist.
	ErrVisitNotFound = errors.New("visit not found")

	// ErrPriceNotFound is returned by stores when deleting a missing price entry.
	ErrPriceNotFound = errors.New("price entry not found")

	// ErrForbidden is returned when the scope may not act on another promoter.
	ErrForbidden = errors.New("forbidden for this scope")

	// ErrUnknownReference is returned by stores when a write points at a
	// promoter, store or brand that does not exist.
	ErrUnknownReference = errors.New("unknown reference")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MalformedRangeError carries the offending bounds.
type MalformedRangeError struct {
	Start Date
	End   Date
}

func (e *MalformedRangeError) Error() string {
	return fmt.Sprintf("malformed range: end %s before start %s", e.End, e.Start)
}

func (e *MalformedRangeError) Unwrap() error { return ErrMalformedRange }

// NoAssignmentError identifies the promoter missing an assignment.
type NoAssignmentError struct {
	PromoterID PromoterID
}

func (e *NoAssignmentError) Error() string {
	return fmt.Sprintf("promoter %d has no store/brand assignment", e.PromoterID)
}

func (e *NoAssignmentError) Unwrap() error { return ErrNoAssignment }

// DuplicatePriceError identifies the pair priced twice.
type DuplicatePriceError struct {
	Pair PairKey
}

func (e *DuplicatePriceError) Error() string {
	return fmt.Sprintf("duplicate price entry for %s", e.Pair)
}

func (e *DuplicatePriceError) Unwrap() error { return ErrDuplicatePriceEntry }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMalformedRange) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrNegativePrice) ||
		errors.Is(err, ErrPricePrecision) ||
		errors.Is(err, ErrDuplicatePriceEntry) ||
		errors.Is(err, ErrUnknownReference)
}

// IsSetupGap returns true if the error indicates missing configuration that
// an operator has to fix.
func IsSetupGap(err error) bool {
	return errors.Is(err, ErrNoAssignment)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrVisitNotFound) ||
		errors.Is(err, ErrPriceNotFound)
}
