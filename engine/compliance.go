/*
compliance.go - Visit frequency compliance per store, brand and promoter

PURPOSE:
  Each (store, brand) assignment carries a target number of visits per
  reporting window. Given the visits that fall in the window, this file
  computes how far each pair, each brand and each promoter is from target.

RULES:
  - Only completed visits count toward the target (visits_done).
  - Pending visits are informational (visits_pending).
  - Cancelled visits are ignored everywhere, including total_visits.
  - progress = 0 when target <= 0, else min(100, done/target*100).
  - A zero-target assignment is listed with progress 0 and adds nothing to
    the brand-level progress numerator or denominator.

EXAMPLE:
  brands := engine.ComputeProgress(assignments, visitsInWindow)
  for _, b := range brands {
      fmt.Printf("%s: %.0f%%\n", b.Brand.Name, b.TotalProgress)
  }

SEE ALSO:
  - dashboard.go: Runs these calculations for a window and scope
*/
package engine

import (
	"sort"
)

// =============================================================================
// PROGRESS TYPES
// =============================================================================

// StoreProgress is the compliance state of one (store, brand) assignment.
type StoreProgress struct {
	Store           StoreRef
	TargetFrequency int
	VisitsDone      int
	VisitsPending   int
	VisitsRemaining int
	TotalVisits     int     // non-cancelled visits of the pair, any status
	Progress        float64 // percent, clamped to [0, 100]
	LastVisitDate   *Date   // latest completed visit, nil if none
}

// BrandProgress rolls up the store progress of one brand.
type BrandProgress struct {
	Brand               BrandRef
	Stores              []StoreProgress
	TotalStores         int
	TotalVisitsDone     int
	TotalVisitsPending  int
	TotalVisitsExpected int
	TotalProgress       float64
}

// PromoterProgress is per-store progress regrouped by promoter.
type PromoterProgress struct {
	Promoter        PromoterRef
	TargetFrequency int // sum of targets of the pairs the promoter covers
	VisitsDone      int
	VisitsPending   int
	VisitsRemaining int
	TotalVisits     int
	Progress        float64
	LastVisitDate   *Date
}

// =============================================================================
// TALLY - Single pass over visits
// =============================================================================

type tally struct {
	done      int
	pending   int
	total     int
	lastVisit *Date
}

func (t *tally) add(v Visit) {
	if !v.Status.Counts() {
		return
	}
	t.total++
	switch v.Status {
	case StatusCompleted:
		t.done++
		if t.lastVisit == nil || v.Date.After(*t.lastVisit) {
			d := v.Date
			t.lastVisit = &d
		}
	case StatusPending:
		t.pending++
	}
}

// Progress returns done/target as a percentage clamped to [0, 100].
// A non-positive target yields 0.
func Progress(done, target int) float64 {
	if target <= 0 || done <= 0 {
		return 0
	}
	p := float64(done) / float64(target) * 100
	if p > 100 {
		return 100
	}
	return p
}

func remaining(done, target int) int {
	if r := target - done; r > 0 {
		return r
	}
	return 0
}

// =============================================================================
// COMPUTE PROGRESS - Store level, rolled up per brand
// =============================================================================

// ComputeProgress computes per-store progress for every assignment and rolls
// it up per brand. Brands appear in the order they are first seen in
// assignments; stores keep assignment order within their brand.
func ComputeProgress(assignments []Assignment, visits []Visit) []BrandProgress {
	if len(assignments) == 0 {
		return []BrandProgress{}
	}

	byPair := make(map[PairKey]*tally)
	for _, v := range visits {
		t, ok := byPair[v.Pair()]
		if !ok {
			t = &tally{}
			byPair[v.Pair()] = t
		}
		t.add(v)
	}

	order := make([]BrandID, 0)
	brands := make(map[BrandID]*BrandProgress)
	targeted := make(map[BrandID]int) // done over targeted stores only

	for _, a := range assignments {
		b, ok := brands[a.Brand.ID]
		if !ok {
			b = &BrandProgress{Brand: a.Brand, Stores: []StoreProgress{}}
			brands[a.Brand.ID] = b
			order = append(order, a.Brand.ID)
		}

		var t tally
		if pt, ok := byPair[a.Pair()]; ok {
			t = *pt
		}

		sp := StoreProgress{
			Store:           a.Store,
			TargetFrequency: a.TargetFrequency,
			VisitsDone:      t.done,
			VisitsPending:   t.pending,
			VisitsRemaining: remaining(t.done, a.TargetFrequency),
			TotalVisits:     t.total,
			Progress:        Progress(t.done, a.TargetFrequency),
			LastVisitDate:   t.lastVisit,
		}
		b.Stores = append(b.Stores, sp)
		b.TotalStores++
		b.TotalVisitsDone += t.done
		b.TotalVisitsPending += t.pending
		if a.TargetFrequency > 0 {
			b.TotalVisitsExpected += a.TargetFrequency
			targeted[a.Brand.ID] += t.done
		}
	}

	result := make([]BrandProgress, 0, len(order))
	for _, id := range order {
		b := brands[id]
		b.TotalProgress = Progress(targeted[id], b.TotalVisitsExpected)
		result = append(result, *b)
	}
	return result
}

// =============================================================================
// PROMOTER PROGRESS - Same computation, grouped by promoter
// =============================================================================

// ComputePromoterProgress computes progress per promoter. A promoter's target
// is the sum of the target frequencies of the pairs they cover; their done,
// pending and total counts cover all their non-cancelled visits.
//
// The result lists every promoter in promoters plus any promoter seen only in
// visits, ordered by name then id.
func ComputePromoterProgress(
	promoters []Promoter,
	promoterAssignments []PromoterAssignment,
	assignments []Assignment,
	visits []Visit,
) []PromoterProgress {
	targets := make(map[PairKey]int, len(assignments))
	for _, a := range assignments {
		if a.TargetFrequency > 0 {
			targets[a.Pair()] += a.TargetFrequency
		}
	}

	refs := make(map[PromoterID]PromoterRef, len(promoters))
	for _, p := range promoters {
		refs[p.ID] = p.Ref()
	}

	expected := make(map[PromoterID]int)
	for _, pa := range promoterAssignments {
		expected[pa.PromoterID] += targets[pa.Pair()]
		if _, ok := refs[pa.PromoterID]; !ok {
			refs[pa.PromoterID] = PromoterRef{ID: pa.PromoterID}
		}
	}

	byPromoter := make(map[PromoterID]*tally)
	for _, v := range visits {
		t, ok := byPromoter[v.Promoter.ID]
		if !ok {
			t = &tally{}
			byPromoter[v.Promoter.ID] = t
		}
		t.add(v)
		if ref, ok := refs[v.Promoter.ID]; !ok || ref.Name == "" {
			refs[v.Promoter.ID] = v.Promoter
		}
	}

	result := make([]PromoterProgress, 0, len(refs))
	for id, ref := range refs {
		var t tally
		if pt, ok := byPromoter[id]; ok {
			t = *pt
		}
		target := expected[id]
		result = append(result, PromoterProgress{
			Promoter:        ref,
			TargetFrequency: target,
			VisitsDone:      t.done,
			VisitsPending:   t.pending,
			VisitsRemaining: remaining(t.done, target),
			TotalVisits:     t.total,
			Progress:        Progress(t.done, target),
			LastVisitDate:   t.lastVisit,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Promoter.Name != result[j].Promoter.Name {
			return result[i].Promoter.Name < result[j].Promoter.Name
		}
		return result[i].Promoter.ID < result[j].Promoter.ID
	})
	return result
}
