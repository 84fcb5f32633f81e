package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PRICE TABLE
// =============================================================================

// PriceTable looks up the unit price of a (store, brand) pair.
type PriceTable interface {
	Price(store StoreID, brand BrandID) (decimal.Decimal, bool)
}

// PriceDecimals is the number of decimal places a stored amount may carry.
const PriceDecimals = 2

// ValidateAmount checks a price or override before it is persisted: it must
// not be negative and must fit in PriceDecimals places.
func ValidateAmount(d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("%w: %s", ErrNegativePrice, d)
	}
	if !d.Equal(d.Truncate(PriceDecimals)) {
		return fmt.Errorf("%w: %s", ErrPricePrecision, d)
	}
	return nil
}

// PriceIndex is an in-memory PriceTable built from a materialized set of
// price entries.
type PriceIndex map[PairKey]decimal.Decimal

// NewPriceIndex indexes entries by pair. It enforces the uniqueness invariant
// and rejects negative prices.
func NewPriceIndex(entries []PriceEntry) (PriceIndex, error) {
	idx := make(PriceIndex, len(entries))
	for _, e := range entries {
		if e.Price.IsNegative() {
			return nil, fmt.Errorf("%w: %s for %s", ErrNegativePrice, e.Price, e.Pair())
		}
		if _, exists := idx[e.Pair()]; exists {
			return nil, &DuplicatePriceError{Pair: e.Pair()}
		}
		idx[e.Pair()] = e.Price
	}
	return idx, nil
}

func (idx PriceIndex) Price(store StoreID, brand BrandID) (decimal.Decimal, bool) {
	p, ok := idx[PairKey{StoreID: store, BrandID: brand}]
	return p, ok
}

// =============================================================================
// PRICE RESOLVER
// =============================================================================

// PriceResolver resolves the monetary value of a visit.
type PriceResolver struct {
	table PriceTable
}

func NewPriceResolver(table PriceTable) *PriceResolver {
	return &PriceResolver{table: table}
}

// Resolve returns override when present, the table price when the pair is
// priced, and zero otherwise. It never fails: an unpriced pair is a data
// entry gap, billable as zero.
func (r *PriceResolver) Resolve(store StoreID, brand BrandID, override *decimal.Decimal) decimal.Decimal {
	if override != nil {
		return *override
	}
	if r == nil || r.table == nil {
		return decimal.Zero
	}
	if p, ok := r.table.Price(store, brand); ok {
		return p
	}
	return decimal.Zero
}

// ResolveVisit is Resolve applied to a visit's pair and override.
func (r *PriceResolver) ResolveVisit(v Visit) decimal.Decimal {
	return r.Resolve(v.Store.ID, v.Brand.ID, v.PriceOverride)
}

// MissingPrices returns the assignments whose pair has no price entry, in
// assignment order.
func MissingPrices(assignments []Assignment, table PriceTable) []Assignment {
	var missing []Assignment
	for _, a := range assignments {
		if _, ok := table.Price(a.Store.ID, a.Brand.ID); !ok {
			missing = append(missing, a)
		}
	}
	return missing
}
