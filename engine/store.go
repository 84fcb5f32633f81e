/*
store.go - Read interfaces the engine consumes from the storage collaborator

PURPOSE:
  The engine computes over materialized collections. Everything it needs is
  fetched through these interfaces BEFORE any computation starts, so the
  pure components never block on I/O.

KEY INTERFACES:
  VisitStore:      Visits by coarse query (dates, promoter)
  PriceStore:      The full price table
  AssignmentStore: Store/brand targets and promoter coverage
  PromoterStore:   Promoter directory
  Store:           All of the above

QUERY PUSHDOWN:
  VisitQuery carries only the constraints every backend can index cheaply.
  Callers still run FilterVisits over the result; a store that ignores the
  query entirely is correct, just slower.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - engine/store/memory.go: In-memory for tests and demos

SEE ALSO:
  - filter.go: VisitFilter.Query builds the VisitQuery
  - dashboard.go, report.go: fetch-then-compute services
*/
package engine

import "context"

// VisitQuery is the coarse visit selection pushed down to a store.
type VisitQuery struct {
	PromoterID *PromoterID
	Start      *Date
	End        *Date
	Status     *Status
}

type VisitStore interface {
	// ListVisits returns visits matching q with store/brand/promoter
	// references populated. Order is unspecified.
	ListVisits(ctx context.Context, q VisitQuery) ([]Visit, error)
}

type PriceStore interface {
	// ListPrices returns every price entry.
	ListPrices(ctx context.Context) ([]PriceEntry, error)
}

type AssignmentStore interface {
	// ListAssignments returns every (store, brand) target.
	ListAssignments(ctx context.Context) ([]Assignment, error)

	// ListPromoterAssignments returns the pairs covered by promoter, or by
	// every promoter when promoter is nil.
	ListPromoterAssignments(ctx context.Context, promoter *PromoterID) ([]PromoterAssignment, error)
}

type PromoterStore interface {
	ListPromoters(ctx context.Context) ([]Promoter, error)
}

// Store is everything the engine services read.
type Store interface {
	VisitStore
	PriceStore
	AssignmentStore
	PromoterStore
}

// LoadPriceResolver fetches the price table and wraps it in a resolver.
func LoadPriceResolver(ctx context.Context, s PriceStore) (*PriceResolver, error) {
	entries, err := s.ListPrices(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := NewPriceIndex(entries)
	if err != nil {
		return nil, err
	}
	return NewPriceResolver(idx), nil
}
