/*
dashboard.go - Consolidated compliance snapshot for a window and scope

PURPOSE:
  Composes the other components for one request:
    1. Fetch visits, targets, prices (and promoter data) from the Store
    2. VisitFilter scoped by role/identity over the window
    3. ComplianceCalculator over the (scoped) assignments
    4. Window-wide totals, valued with the PriceResolver
    5. Per-promoter breakdown for analysts and managers only

PROMOTER SCOPE:
  A promoter only sees their own visits, and the assignment set is reduced
  to the (store, brand) pairs they cover. A promoter covering nothing gets a
  NoAssignmentError instead of an empty dashboard: that is a setup gap an
  operator must fix, not a quiet week.

STATE:
  None. Every call fetches fresh data and computes from scratch.

SEE ALSO:
  - compliance.go: ComputeProgress, ComputePromoterProgress
  - filter.go: FilterVisits
*/
package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultUpcomingLimit is how many upcoming pending visits a promoter sees.
const DefaultUpcomingLimit = 5

// Totals are simple counts over the scoped visits of the window.
type Totals struct {
	TotalVisits     int // non-cancelled
	TotalCompleted  int
	TotalPending    int
	TotalInProgress int
	CompletedValue  decimal.Decimal
}

// DashboardSnapshot is the result of one Assemble call.
type DashboardSnapshot struct {
	Window    Window
	Scope     Scope
	Totals    Totals
	Brands    []BrandProgress
	Promoters []PromoterProgress // nil for promoter scope
	Upcoming  []Visit            // promoter scope only
}

// Assembler builds dashboard snapshots from a Store.
type Assembler struct {
	Store         Store
	UpcomingLimit int
}

func NewAssembler(store Store) *Assembler {
	return &Assembler{Store: store, UpcomingLimit: DefaultUpcomingLimit}
}

// Assemble computes the snapshot for window as seen by scope.
func (a *Assembler) Assemble(ctx context.Context, window Window, scope Scope) (*DashboardSnapshot, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if _, err := ParseRole(string(scope.Role)); err != nil {
		return nil, err
	}

	assignments, err := a.Store.ListAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	if scope.IsPromoter() {
		assignments, err = a.promoterAssignments(ctx, scope.Identity, assignments)
		if err != nil {
			return nil, err
		}
	}

	filter := ForWindow(window, scope)
	raw, err := a.Store.ListVisits(ctx, filter.Query())
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	visits, err := FilterVisits(raw, filter)
	if err != nil {
		return nil, err
	}

	resolver, err := LoadPriceResolver(ctx, a.Store)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}

	snap := &DashboardSnapshot{
		Window: window,
		Scope:  scope,
		Totals: ComputeTotals(visits, resolver),
		Brands: ComputeProgress(assignments, visits),
	}

	if scope.IsPromoter() {
		snap.Upcoming, err = a.upcoming(ctx, scope.Identity, window.Start)
		if err != nil {
			return nil, err
		}
		return snap, nil
	}

	promoters, err := a.Store.ListPromoters(ctx)
	if err != nil {
		return nil, fmt.Errorf("list promoters: %w", err)
	}
	coverage, err := a.Store.ListPromoterAssignments(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list promoter assignments: %w", err)
	}
	snap.Promoters = ComputePromoterProgress(promoters, coverage, assignments, visits)
	return snap, nil
}

// ComputeTotals counts visits by status and values the completed ones.
// Cancelled visits are not counted.
func ComputeTotals(visits []Visit, resolver *PriceResolver) Totals {
	t := Totals{CompletedValue: decimal.Zero}
	for _, v := range visits {
		if !v.Status.Counts() {
			continue
		}
		t.TotalVisits++
		switch v.Status {
		case StatusCompleted:
			t.TotalCompleted++
			t.CompletedValue = t.CompletedValue.Add(resolver.ResolveVisit(v))
		case StatusPending:
			t.TotalPending++
		case StatusInProgress:
			t.TotalInProgress++
		}
	}
	return t
}

// promoterAssignments reduces assignments to the pairs promoter covers.
func (a *Assembler) promoterAssignments(ctx context.Context, promoter PromoterID, all []Assignment) ([]Assignment, error) {
	coverage, err := a.Store.ListPromoterAssignments(ctx, &promoter)
	if err != nil {
		return nil, fmt.Errorf("list promoter assignments: %w", err)
	}
	covered := make(map[PairKey]bool, len(coverage))
	for _, pa := range coverage {
		covered[pa.Pair()] = true
	}

	scoped := make([]Assignment, 0, len(coverage))
	for _, as := range all {
		if covered[as.Pair()] {
			scoped = append(scoped, as)
		}
	}
	if len(scoped) == 0 {
		return nil, &NoAssignmentError{PromoterID: promoter}
	}
	return scoped, nil
}

// upcoming returns the promoter's pending visits dated on or after from.
func (a *Assembler) upcoming(ctx context.Context, promoter PromoterID, from Date) ([]Visit, error) {
	limit := a.UpcomingLimit
	if limit <= 0 {
		return []Visit{}, nil
	}
	pending := StatusPending
	raw, err := a.Store.ListVisits(ctx, VisitQuery{PromoterID: &promoter, Start: &from, Status: &pending})
	if err != nil {
		return nil, fmt.Errorf("list upcoming visits: %w", err)
	}

	out := make([]Visit, 0, len(raw))
	for _, v := range raw {
		if v.Promoter.ID == promoter && v.Status == StatusPending && !v.Date.Before(from) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
