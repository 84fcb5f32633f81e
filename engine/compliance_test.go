package engine_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/visit-engine/engine"
)

// =============================================================================
// STORE-LEVEL PROGRESS
// =============================================================================

func TestComputeProgress_ClampsOverPerformance(t *testing.T) {
	// GIVEN: Target 2, five completed visits
	var visits []engine.Visit
	for i := 1; i <= 5; i++ {
		visits = append(visits, visit(engine.VisitID(i), alice, storeCentro, brandAcme, fmt.Sprintf("2024-01-%02d", i), engine.StatusCompleted))
	}

	// WHEN: Computing progress
	brands := engine.ComputeProgress([]engine.Assignment{assignment(storeCentro, brandAcme, 2)}, visits)

	// THEN: Progress is 100, not 250, and nothing remains
	require.Len(t, brands, 1)
	require.Len(t, brands[0].Stores, 1)
	sp := brands[0].Stores[0]
	assert.Equal(t, 5, sp.VisitsDone)
	assert.Equal(t, 100.0, sp.Progress)
	assert.Equal(t, 0, sp.VisitsRemaining)
	assert.Equal(t, 100.0, brands[0].TotalProgress)
}

func TestComputeProgress_ZeroTarget(t *testing.T) {
	visits := []engine.Visit{
		visit(1, alice, storeCentro, brandAcme, "2024-01-02", engine.StatusCompleted),
	}

	brands := engine.ComputeProgress([]engine.Assignment{assignment(storeCentro, brandAcme, 0)}, visits)

	require.Len(t, brands, 1)
	sp := brands[0].Stores[0]
	assert.Equal(t, 0.0, sp.Progress, "zero target is 0, never 100 or NaN")
	assert.Equal(t, 1, sp.VisitsDone)
	assert.Equal(t, 0, sp.VisitsRemaining)
	assert.Equal(t, 0, brands[0].TotalVisitsExpected)
	assert.Equal(t, 0.0, brands[0].TotalProgress)
}

func TestComputeProgress_NoVisits(t *testing.T) {
	brands := engine.ComputeProgress([]engine.Assignment{assignment(storeNorte, brandAcme, 3)}, nil)

	require.Len(t, brands, 1)
	sp := brands[0].Stores[0]
	assert.Equal(t, 0, sp.VisitsDone)
	assert.Equal(t, 3, sp.VisitsRemaining)
	assert.Equal(t, 0.0, sp.Progress)
	assert.Nil(t, sp.LastVisitDate)
}

func TestComputeProgress_OnlyCompletedCount(t *testing.T) {
	// GIVEN: One completed, two pending, one in progress, one cancelled
	visits := []engine.Visit{
		visit(1, alice, storeCentro, brandAcme, "2024-01-02", engine.StatusCompleted),
		visit(2, alice, storeCentro, brandAcme, "2024-01-03", engine.StatusPending),
		visit(3, alice, storeCentro, brandAcme, "2024-01-04", engine.StatusPending),
		visit(4, alice, storeCentro, brandAcme, "2024-01-05", engine.StatusInProgress),
		visit(5, alice, storeCentro, brandAcme, "2024-01-06", engine.StatusCancelled),
	}

	brands := engine.ComputeProgress([]engine.Assignment{assignment(storeCentro, brandAcme, 4)}, visits)

	sp := brands[0].Stores[0]
	assert.Equal(t, 1, sp.VisitsDone)
	assert.Equal(t, 2, sp.VisitsPending)
	assert.Equal(t, 4, sp.TotalVisits, "cancelled is not a visit")
	assert.Equal(t, 3, sp.VisitsRemaining)
	assert.Equal(t, 25.0, sp.Progress)
	require.NotNil(t, sp.LastVisitDate)
	assert.Equal(t, "2024-01-02", sp.LastVisitDate.String(), "last visit is the last completed one")
}

func TestComputeProgress_CancelledExcluded(t *testing.T) {
	visits := []engine.Visit{
		visit(1, alice, storeCentro, brandAcme, "2024-01-02", engine.StatusCancelled),
	}

	brands := engine.ComputeProgress([]engine.Assignment{assignment(storeCentro, brandAcme, 1)}, visits)

	sp := brands[0].Stores[0]
	assert.Equal(t, 0, sp.VisitsDone)
	assert.Equal(t, 0, sp.VisitsPending)
	assert.Equal(t, 0, sp.TotalVisits)
	assert.Nil(t, sp.LastVisitDate)
}

func TestComputeProgress_ExactPairMatch(t *testing.T) {
	// A visit for the same store under another brand does not count
	visits := []engine.Visit{
		visit(1, alice, storeCentro, brandGlobo, "2024-01-02", engine.StatusCompleted),
	}

	brands := engine.ComputeProgress([]engine.Assignment{assignment(storeCentro, brandAcme, 1)}, visits)
	assert.Equal(t, 0, brands[0].Stores[0].VisitsDone)
}

func TestComputeProgress_LastVisitDateIsMax(t *testing.T) {
	visits := []engine.Visit{
		visit(1, alice, storeCentro, brandAcme, "2024-01-09", engine.StatusCompleted),
		visit(2, bruno, storeCentro, brandAcme, "2024-01-20", engine.StatusCompleted),
		visit(3, alice, storeCentro, brandAcme, "2024-01-03", engine.StatusCompleted),
		visit(4, alice, storeCentro, brandAcme, "2024-01-25", engine.StatusPending),
	}

	brands := engine.ComputeProgress([]engine.Assignment{assignment(storeCentro, brandAcme, 4)}, visits)
	require.NotNil(t, brands[0].Stores[0].LastVisitDate)
	assert.Equal(t, "2024-01-20", brands[0].Stores[0].LastVisitDate.String())
}

// =============================================================================
// BRAND ROLL-UP
// =============================================================================

func TestComputeProgress_BrandRollUp(t *testing.T) {
	// GIVEN: Acme at three stores (targets 2, 2, 0), Globo at one store
	assignments := []engine.Assignment{
		assignment(storeCentro, brandAcme, 2),
		assignment(storeCentro, brandGlobo, 1),
		assignment(storeNorte, brandAcme, 2),
		assignment(storeSul, brandAcme, 0),
	}
	visits := []engine.Visit{
		visit(1, alice, storeCentro, brandAcme, "2024-01-02", engine.StatusCompleted),
		visit(2, alice, storeCentro, brandAcme, "2024-01-03", engine.StatusCompleted),
		visit(3, alice, storeNorte, brandAcme, "2024-01-04", engine.StatusCompleted),
		visit(4, alice, storeNorte, brandAcme, "2024-01-05", engine.StatusPending),
		visit(5, bruno, storeSul, brandAcme, "2024-01-05", engine.StatusCompleted),
	}

	// WHEN
	brands := engine.ComputeProgress(assignments, visits)

	// THEN: Brands in first-seen order
	require.Len(t, brands, 2)
	assert.Equal(t, brandAcme.ID, brands[0].Brand.ID)
	assert.Equal(t, brandGlobo.ID, brands[1].Brand.ID)

	acme := brands[0]
	assert.Equal(t, 3, acme.TotalStores)
	assert.Equal(t, 4, acme.TotalVisitsDone)
	assert.Equal(t, 1, acme.TotalVisitsPending)
	assert.Equal(t, 4, acme.TotalVisitsExpected)
	// zero-target store adds nothing: 3 done over 4 expected
	assert.Equal(t, 75.0, acme.TotalProgress)

	require.Len(t, acme.Stores, 3)
	assert.Equal(t, storeSul.ID, acme.Stores[2].Store.ID)
	assert.Equal(t, 0.0, acme.Stores[2].Progress)

	globo := brands[1]
	assert.Equal(t, 1, globo.TotalStores)
	assert.Equal(t, 0.0, globo.TotalProgress)
}

func TestComputeProgress_BrandClamp(t *testing.T) {
	assignments := []engine.Assignment{assignment(storeCentro, brandAcme, 1)}
	visits := []engine.Visit{
		visit(1, alice, storeCentro, brandAcme, "2024-01-02", engine.StatusCompleted),
		visit(2, alice, storeCentro, brandAcme, "2024-01-03", engine.StatusCompleted),
	}

	brands := engine.ComputeProgress(assignments, visits)
	assert.Equal(t, 100.0, brands[0].TotalProgress)
}

func TestComputeProgress_NoAssignments(t *testing.T) {
	brands := engine.ComputeProgress(nil, []engine.Visit{
		visit(1, alice, storeCentro, brandAcme, "2024-01-02", engine.StatusCompleted),
	})
	assert.NotNil(t, brands)
	assert.Empty(t, brands)
}

func TestProgress(t *testing.T) {
	tests := []struct {
		done, target int
		want         float64
	}{
		{0, 0, 0},
		{3, 0, 0},
		{1, -1, 0},
		{0, 4, 0},
		{1, 4, 25},
		{1, 3, 100.0 / 3},
		{4, 4, 100},
		{5, 2, 100},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, engine.Progress(tt.done, tt.target), 1e-9, "done=%d target=%d", tt.done, tt.target)
	}
}

// =============================================================================
// PROMOTER PROGRESS
// =============================================================================

func TestComputePromoterProgress(t *testing.T) {
	// GIVEN: Alice covers two pairs (targets 2 + 1), Bruno covers one (target 2),
	// Carla is known but covers nothing and has no visits
	promoters := []engine.Promoter{
		{ID: bruno.ID, Name: bruno.Name},
		{ID: alice.ID, Name: alice.Name},
		{ID: 3, Name: "Carla"},
	}
	coverage := []engine.PromoterAssignment{
		{PromoterID: alice.ID, StoreID: storeCentro.ID, BrandID: brandAcme.ID},
		{PromoterID: alice.ID, StoreID: storeCentro.ID, BrandID: brandGlobo.ID},
		{PromoterID: bruno.ID, StoreID: storeNorte.ID, BrandID: brandAcme.ID},
	}
	assignments := []engine.Assignment{
		assignment(storeCentro, brandAcme, 2),
		assignment(storeCentro, brandGlobo, 1),
		assignment(storeNorte, brandAcme, 2),
	}
	visits := []engine.Visit{
		visit(1, alice, storeCentro, brandAcme, "2024-01-02", engine.StatusCompleted),
		visit(2, alice, storeCentro, brandGlobo, "2024-01-03", engine.StatusPending),
		visit(3, bruno, storeNorte, brandAcme, "2024-01-04", engine.StatusCompleted),
		visit(4, bruno, storeNorte, brandAcme, "2024-01-05", engine.StatusCompleted),
		visit(5, bruno, storeNorte, brandAcme, "2024-01-06", engine.StatusCompleted),
		visit(6, bruno, storeNorte, brandAcme, "2024-01-07", engine.StatusCancelled),
	}

	// WHEN
	got := engine.ComputePromoterProgress(promoters, coverage, assignments, visits)

	// THEN: Ordered by name
	require.Len(t, got, 3)
	assert.Equal(t, "Alice", got[0].Promoter.Name)
	assert.Equal(t, "Bruno", got[1].Promoter.Name)
	assert.Equal(t, "Carla", got[2].Promoter.Name)

	a := got[0]
	assert.Equal(t, 3, a.TargetFrequency)
	assert.Equal(t, 1, a.VisitsDone)
	assert.Equal(t, 1, a.VisitsPending)
	assert.Equal(t, 2, a.VisitsRemaining)
	assert.InDelta(t, 100.0/3, a.Progress, 1e-9)

	b := got[1]
	assert.Equal(t, 2, b.TargetFrequency)
	assert.Equal(t, 3, b.VisitsDone)
	assert.Equal(t, 3, b.TotalVisits)
	assert.Equal(t, 100.0, b.Progress)
	require.NotNil(t, b.LastVisitDate)
	assert.Equal(t, "2024-01-06", b.LastVisitDate.String())

	c := got[2]
	assert.Equal(t, 0, c.TargetFrequency)
	assert.Equal(t, 0.0, c.Progress)
	assert.Nil(t, c.LastVisitDate)
}

func TestComputePromoterProgress_VisitOnlyPromoter(t *testing.T) {
	got := engine.ComputePromoterProgress(nil, nil, nil, []engine.Visit{
		visit(1, quarenta, storeCentro, brandAcme, "2024-01-02", engine.StatusCompleted),
	})

	require.Len(t, got, 1)
	assert.Equal(t, quarenta, got[0].Promoter)
	assert.Equal(t, 1, got[0].VisitsDone)
	assert.Equal(t, 0.0, got[0].Progress)
}
