package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/visit-engine/engine"
	"github.com/warp/visit-engine/engine/store"
)

func cumulatives(rows []engine.ReportRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Cumulative.String()
	}
	return out
}

func counts(rows []engine.ReportRow) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Count
	}
	return out
}

// =============================================================================
// BUILD REPORT
// =============================================================================

func TestBuildReport_RunningTotalsSinglePromoter(t *testing.T) {
	// GIVEN: Three visits for one promoter priced 10, 20, 30
	resolver := engine.NewPriceResolver(priceIndex(
		price(storeCentro, brandAcme, "10"),
		price(storeNorte, brandAcme, "20"),
		price(storeSul, brandAcme, "30"),
	))
	visits := []engine.Visit{
		visit(1, alice, storeCentro, brandAcme, "2024-01-02", engine.StatusCompleted),
		visit(2, alice, storeNorte, brandAcme, "2024-01-03", engine.StatusCompleted),
		visit(3, alice, storeSul, brandAcme, "2024-01-04", engine.StatusCompleted),
	}

	// WHEN
	rows, summary := engine.BuildReport(visits, resolver)

	// THEN: Running totals 10, 30, 60 and counts 1, 2, 3
	assert.Equal(t, []string{"10", "30", "60"}, cumulatives(rows))
	assert.Equal(t, []int{1, 2, 3}, counts(rows))
	assert.Equal(t, []bool{false, false, true}, []bool{rows[0].EndsGroup, rows[1].EndsGroup, rows[2].EndsGroup})

	require.Contains(t, summary, alice.ID)
	assert.Equal(t, 3, summary[alice.ID].Count)
	assert.True(t, summary[alice.ID].Total.Equal(money("60")))
}

func TestBuildReport_PerPromoterSummary(t *testing.T) {
	// GIVEN: A,A,A priced 5 each, then B,B priced 10 each
	resolver := engine.NewPriceResolver(priceIndex(
		price(storeCentro, brandAcme, "5"),
		price(storeNorte, brandGlobo, "10"),
	))
	visits := []engine.Visit{
		visit(1, alice, storeCentro, brandAcme, "2024-01-02", engine.StatusCompleted),
		visit(2, alice, storeCentro, brandAcme, "2024-01-03", engine.StatusCompleted),
		visit(3, alice, storeCentro, brandAcme, "2024-01-04", engine.StatusCompleted),
		visit(4, bruno, storeNorte, brandGlobo, "2024-01-02", engine.StatusCompleted),
		visit(5, bruno, storeNorte, brandGlobo, "2024-01-03", engine.StatusCompleted),
	}

	rows, summary := engine.BuildReport(visits, resolver)

	// THEN: Summary A=3/15, B=2/20; running state resets at B
	require.Len(t, summary, 2)
	assert.Equal(t, 3, summary[alice.ID].Count)
	assert.True(t, summary[alice.ID].Total.Equal(money("15")))
	assert.Equal(t, 2, summary[bruno.ID].Count)
	assert.True(t, summary[bruno.ID].Total.Equal(money("20")))

	assert.Equal(t, []int{1, 2, 3, 1, 2}, counts(rows))
	assert.Equal(t, []string{"5", "10", "15", "10", "20"}, cumulatives(rows))
	assert.True(t, rows[2].EndsGroup, "last A row closes the group")
	assert.False(t, rows[3].EndsGroup)
	assert.True(t, rows[4].EndsGroup)
}

func TestBuildReport_RowCarriesVisitData(t *testing.T) {
	resolver := engine.NewPriceResolver(priceIndex(price(storeCentro, brandAcme, "12.34")))
	visits := []engine.Visit{
		visit(7, alice, storeCentro, brandAcme, "2024-03-04", engine.StatusCompleted),
	}

	rows, _ := engine.BuildReport(visits, resolver)

	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, engine.VisitID(7), r.VisitID)
	assert.Equal(t, alice, r.Promoter)
	assert.Equal(t, storeCentro, r.Store)
	require.NotNil(t, r.Store.Number)
	assert.Equal(t, 101, *r.Store.Number)
	assert.Equal(t, brandAcme, r.Brand)
	assert.Equal(t, "2024-03-04", r.Date.String())
	assert.Equal(t, "12.34", r.Price.StringFixed(2))
}

func TestBuildReport_OverrideAndMissingPrice(t *testing.T) {
	resolver := engine.NewPriceResolver(priceIndex(price(storeCentro, brandAcme, "10")))
	overridden := visit(1, alice, storeCentro, brandAcme, "2024-01-02", engine.StatusCompleted)
	overridden.PriceOverride = moneyPtr("8")
	visits := []engine.Visit{
		overridden,
		visit(2, alice, storeNorte, brandGlobo, "2024-01-03", engine.StatusCompleted), // unpriced
		visit(3, alice, storeCentro, brandAcme, "2024-01-04", engine.StatusCompleted),
	}

	rows, summary := engine.BuildReport(visits, resolver)

	assert.Equal(t, []string{"8", "8", "18"}, cumulatives(rows))
	assert.True(t, rows[1].Price.IsZero())
	assert.True(t, summary[alice.ID].Total.Equal(money("18")))
}

func TestBuildReport_Empty(t *testing.T) {
	rows, summary := engine.BuildReport(nil, engine.NewPriceResolver(nil))

	assert.NotNil(t, rows)
	assert.Empty(t, rows)
	assert.NotNil(t, summary)
	assert.Empty(t, summary)
}

func TestBuildReport_UnsortedInputBreaksGrouping(t *testing.T) {
	// GIVEN: A, B, A - not promoter-major
	resolver := engine.NewPriceResolver(priceIndex(price(storeCentro, brandAcme, "10")))
	visits := []engine.Visit{
		visit(1, alice, storeCentro, brandAcme, "2024-01-02", engine.StatusCompleted),
		visit(2, bruno, storeCentro, brandAcme, "2024-01-03", engine.StatusCompleted),
		visit(3, alice, storeCentro, brandAcme, "2024-01-04", engine.StatusCompleted),
	}

	// WHEN: Building without sorting
	rows, _ := engine.BuildReport(visits, resolver)

	// THEN: Alice is split into two groups and her second group does not start
	// from one, so subtotal lines emitted on promoter change are wrong
	groups := 0
	for _, r := range rows {
		if r.EndsGroup {
			groups++
		}
	}
	assert.Equal(t, 3, groups, "two promoters render as three groups")
	assert.Equal(t, alice.ID, rows[2].Promoter.ID)
	assert.Equal(t, 2, rows[2].Count, "the group opening row should have count 1")
	assert.NotEqual(t, "10", rows[2].Cumulative.String())

	// AND: Sorting first restores the contract
	engine.SortForReport(visits)
	rows, _ = engine.BuildReport(visits, resolver)
	assert.Equal(t, []int{1, 2, 1}, counts(rows))
	assert.True(t, rows[1].EndsGroup)
	assert.False(t, rows[0].EndsGroup)
}

// =============================================================================
// SORTING AND SUMMARY
// =============================================================================

func TestSortForReport(t *testing.T) {
	visits := []engine.Visit{
		visit(5, bruno, storeCentro, brandAcme, "2024-01-01", engine.StatusCompleted),
		visit(4, alice, storeCentro, brandAcme, "2024-01-09", engine.StatusCompleted),
		visit(3, alice, storeCentro, brandAcme, "2024-01-02", engine.StatusCompleted),
		visit(2, alice, storeNorte, brandAcme, "2024-01-02", engine.StatusCompleted),
	}

	engine.SortForReport(visits)

	assert.Equal(t, []engine.VisitID{2, 3, 4, 5}, ids(visits))
}

func TestSortedSummary(t *testing.T) {
	summary := map[engine.PromoterID]engine.PromoterTotal{
		bruno.ID: {Promoter: bruno, Count: 1, Total: money("1")},
		alice.ID: {Promoter: alice, Count: 2, Total: money("2")},
	}

	got := engine.SortedSummary(summary)
	require.Len(t, got, 2)
	assert.Equal(t, "Alice", got[0].Promoter.Name)
	assert.Equal(t, "Bruno", got[1].Promoter.Name)
}

// =============================================================================
// REPORT SERVICE
// =============================================================================

func reportStore(t *testing.T) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	require.NoError(t, m.SetPrice(price(storeCentro, brandAcme, "5")))
	require.NoError(t, m.SetPrice(price(storeNorte, brandGlobo, "10")))

	// inserted out of order on purpose
	m.AddVisit(visit(1, bruno, storeNorte, brandGlobo, "2024-01-03", engine.StatusCompleted))
	m.AddVisit(visit(2, alice, storeCentro, brandAcme, "2024-01-04", engine.StatusCompleted))
	m.AddVisit(visit(3, alice, storeCentro, brandAcme, "2024-01-02", engine.StatusPending))
	m.AddVisit(visit(4, bruno, storeNorte, brandGlobo, "2024-01-02", engine.StatusCompleted))
	m.AddVisit(visit(5, alice, storeCentro, brandAcme, "2024-01-03", engine.StatusCancelled))
	m.AddVisit(visit(6, alice, storeCentro, brandAcme, "2024-02-10", engine.StatusCompleted))
	return m
}

func TestReportService_Generate(t *testing.T) {
	svc := engine.NewReportService(reportStore(t))
	f := engine.VisitFilter{
		Start: datePtr("2024-01-01"),
		End:   datePtr("2024-01-31"),
		Scope: engine.Scope{Role: engine.RoleManager},
	}

	report, err := svc.Generate(context.Background(), f)
	require.NoError(t, err)

	// cancelled (5) and out-of-window (6) are dropped; sorted promoter-major
	assert.Equal(t, []engine.VisitID{3, 2, 4, 1}, rowIDs(report.Rows))
	assert.Equal(t, []int{1, 2, 1, 2}, counts(report.Rows))
	assert.Equal(t, 4, report.TotalCount)
	assert.True(t, report.TotalValue.Equal(money("30")))

	require.Len(t, report.Summary, 2)
	assert.Equal(t, alice.ID, report.Summary[0].Promoter.ID)
	assert.True(t, report.Summary[0].Total.Equal(money("10")))
}

func TestReportService_PromoterScope(t *testing.T) {
	svc := engine.NewReportService(reportStore(t))
	other := bruno.ID
	f := engine.VisitFilter{
		PromoterID: &other,
		Scope:      engine.Scope{Role: engine.RolePromoter, Identity: alice.ID},
	}

	report, err := svc.Generate(context.Background(), f)
	require.NoError(t, err)
	for _, r := range report.Rows {
		assert.Equal(t, alice.ID, r.Promoter.ID)
	}
	assert.Len(t, report.Rows, 3)
}

func TestReportService_MalformedRange(t *testing.T) {
	svc := engine.NewReportService(reportStore(t))

	_, err := svc.Generate(context.Background(), engine.VisitFilter{
		Start: datePtr("2024-02-01"),
		End:   datePtr("2024-01-01"),
	})
	assert.ErrorIs(t, err, engine.ErrMalformedRange)
}

func rowIDs(rows []engine.ReportRow) []engine.VisitID {
	out := make([]engine.VisitID, len(rows))
	for i, r := range rows {
		out[i] = r.VisitID
	}
	return out
}
