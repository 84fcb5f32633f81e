/*
report.go - Visit billing report with per-promoter running totals

PURPOSE:
  Turns an ordered visit sequence into report rows. Every row carries the
  promoter's running visit count and running monetary total through that
  row, so renderers can stream rows and emit a subtotal line whenever the
  promoter changes, without a second aggregation query.

ORDERING CONTRACT:
  BuildReport does NOT sort. Input must be ordered promoter-major, date-minor
  (SortForReport does exactly that). With unsorted input a promoter's rows
  are split into several groups and the subtotal lines become meaningless.
  ReportService.Generate is the caller that honors the contract.

ALGORITHM:
  One forward pass with an accumulator keyed by promoter:
    for each visit:
        price := resolver.ResolveVisit(visit)
        acc[promoter].count++
        acc[promoter].value += price
        emit row with acc[promoter] as of this row

SEE ALSO:
  - export/: renderers that consume rows and EndsGroup
  - price.go: PriceResolver
*/
package engine

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REPORT TYPES
// =============================================================================

// ReportRow is one visit with the promoter's running totals through it.
type ReportRow struct {
	VisitID    VisitID
	Promoter   PromoterRef
	Store      StoreRef
	Brand      BrandRef
	Date       Date
	Status     Status
	Price      decimal.Decimal
	Count      int             // promoter's visits so far, this row included
	Cumulative decimal.Decimal // promoter's value so far, this row included

	// EndsGroup is true when the next row belongs to a different promoter
	// or this is the last row.
	EndsGroup bool
}

// PromoterTotal is the final accumulator state of one promoter.
type PromoterTotal struct {
	Promoter PromoterRef
	Count    int
	Total    decimal.Decimal
}

// =============================================================================
// BUILD REPORT - Single forward pass
// =============================================================================

// BuildReport folds visits into rows with running per-promoter totals and
// returns the final per-promoter summary. Empty input yields empty, non-nil
// results.
func BuildReport(visits []Visit, resolver *PriceResolver) ([]ReportRow, map[PromoterID]PromoterTotal) {
	rows := make([]ReportRow, 0, len(visits))
	acc := make(map[PromoterID]*PromoterTotal)

	for i, v := range visits {
		price := resolver.ResolveVisit(v)

		t, ok := acc[v.Promoter.ID]
		if !ok {
			t = &PromoterTotal{Promoter: v.Promoter, Total: decimal.Zero}
			acc[v.Promoter.ID] = t
		}
		t.Count++
		t.Total = t.Total.Add(price)

		if i > 0 && rows[i-1].Promoter.ID != v.Promoter.ID {
			rows[i-1].EndsGroup = true
		}
		rows = append(rows, ReportRow{
			VisitID:    v.ID,
			Promoter:   v.Promoter,
			Store:      v.Store,
			Brand:      v.Brand,
			Date:       v.Date,
			Status:     v.Status,
			Price:      price,
			Count:      t.Count,
			Cumulative: t.Total,
		})
	}
	if n := len(rows); n > 0 {
		rows[n-1].EndsGroup = true
	}

	summary := make(map[PromoterID]PromoterTotal, len(acc))
	for id, t := range acc {
		summary[id] = *t
	}
	return rows, summary
}

// SortForReport orders visits in place by promoter id, then date, then
// visit id.
func SortForReport(visits []Visit) {
	sort.SliceStable(visits, func(i, j int) bool {
		a, b := visits[i], visits[j]
		if a.Promoter.ID != b.Promoter.ID {
			return a.Promoter.ID < b.Promoter.ID
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID < b.ID
	})
}

// SortedSummary returns the summary ordered by promoter name, then id.
func SortedSummary(summary map[PromoterID]PromoterTotal) []PromoterTotal {
	out := make([]PromoterTotal, 0, len(summary))
	for _, t := range summary {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Promoter.Name != out[j].Promoter.Name {
			return out[i].Promoter.Name < out[j].Promoter.Name
		}
		return out[i].Promoter.ID < out[j].Promoter.ID
	})
	return out
}

// =============================================================================
// REPORT SERVICE - Fetch, filter, sort, build
// =============================================================================

// Report is a complete visit report for one filter.
type Report struct {
	Filter     VisitFilter
	Rows       []ReportRow
	Summary    []PromoterTotal
	TotalCount int
	TotalValue decimal.Decimal
}

// ReportService produces reports from a Store.
type ReportService struct {
	Store Store
}

func NewReportService(store Store) *ReportService {
	return &ReportService{Store: store}
}

// Generate fetches the visits and prices, applies f, drops cancelled visits,
// sorts promoter-major and builds the report.
func (s *ReportService) Generate(ctx context.Context, f VisitFilter) (*Report, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	raw, err := s.Store.ListVisits(ctx, f.Query())
	if err != nil {
		return nil, err
	}
	resolver, err := LoadPriceResolver(ctx, s.Store)
	if err != nil {
		return nil, err
	}

	visits, err := FilterVisits(raw, f)
	if err != nil {
		return nil, err
	}
	visits = withoutCancelled(visits)
	SortForReport(visits)

	rows, summary := BuildReport(visits, resolver)

	report := &Report{
		Filter:     f,
		Rows:       rows,
		Summary:    SortedSummary(summary),
		TotalCount: len(rows),
		TotalValue: decimal.Zero,
	}
	for _, t := range report.Summary {
		report.TotalValue = report.TotalValue.Add(t.Total)
	}
	return report, nil
}

func withoutCancelled(visits []Visit) []Visit {
	out := visits[:0]
	for _, v := range visits {
		if v.Status.Counts() {
			out = append(out, v)
		}
	}
	return out
}
