/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the database with realistic
  data for demos. Each scenario creates promoters, stores, brands, visit
  targets, coverage, prices and a week of visits around the current date.

AVAILABLE SCENARIOS:
  balanced-week:   Three promoters, four assigned pairs, all priced
  promoter-gap:    Same field team, but one promoter has no coverage
  unpriced-pairs:  Two assigned pairs missing from the price table

HOW SCENARIOS WORK:
  1. Reset database (clear all data)
  2. Create promoters, stores and brands
  3. Save (store, brand) targets and promoter coverage
  4. Save prices
  5. Add visits, dated relative to the Monday of the current week

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "balanced-week"}

ADDING NEW SCENARIOS:
  1. Add to 'scenarios' slice with ID, name, description
  2. Write a builder returning a scenarioSeed
  3. Register it in scenarioBuilders

NOTE:
  Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase
  - store/sqlite/sqlite.go: Save* methods used here
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/warp/visit-engine/engine"
	"github.com/warp/visit-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "balanced-week",
		Name:        "Balanced Week",
		Description: "Three promoters covering four priced store/brand pairs, mixed visit statuses",
	},
	{
		ID:          "promoter-gap",
		Name:        "Promoter Without Coverage",
		Description: "Carla has visits but no store/brand coverage; her dashboard reports no_assignment",
	},
	{
		ID:          "unpriced-pairs",
		Name:        "Unpriced Pairs",
		Description: "Two assigned pairs have no price; completed visits there bill 0.00 and the audit flags them",
	},
}

var scenarioBuilders = map[string]func() scenarioSeed{
	"balanced-week":  balancedWeekSeed,
	"promoter-gap":   promoterGapSeed,
	"unpriced-pairs": unpricedPairsSeed,
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	current := h.currentScenario
	h.scenarioMu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the database and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	build, ok := scenarioBuilders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	monday := engine.WeekOf(h.Now()).Start
	if err := build().apply(ctx, h.Store, monday); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.log.Info().Str("scenario", req.ScenarioID).Str("week_start", monday.String()).Msg("Scenario loaded")

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SEED DATA
// =============================================================================

type seedAssignment struct {
	store  engine.StoreID
	brand  engine.BrandID
	target int
	price  string // empty: leave unpriced
}

type seedVisit struct {
	promoter engine.PromoterID
	store    engine.StoreID
	brand    engine.BrandID
	day      int // offset from Monday
	status   engine.Status
	override string
}

type scenarioSeed struct {
	promoters   []engine.Promoter
	stores      []engine.StoreRef
	brands      []engine.BrandRef
	assignments []seedAssignment
	coverage    []engine.PromoterAssignment
	visits      []seedVisit
}

func (s scenarioSeed) apply(ctx context.Context, store *sqlite.Store, monday engine.Date) error {
	for _, p := range s.promoters {
		if err := store.SavePromoter(ctx, p); err != nil {
			return fmt.Errorf("promoter %s: %w", p.Name, err)
		}
	}
	for _, st := range s.stores {
		if err := store.SaveStore(ctx, st); err != nil {
			return fmt.Errorf("store %s: %w", st.Name, err)
		}
	}
	for _, b := range s.brands {
		if err := store.SaveBrand(ctx, b); err != nil {
			return fmt.Errorf("brand %s: %w", b.Name, err)
		}
	}

	for _, a := range s.assignments {
		if err := store.SaveAssignment(ctx, a.store, a.brand, a.target); err != nil {
			return fmt.Errorf("assignment %d/%d: %w", a.store, a.brand, err)
		}
		if a.price == "" {
			continue
		}
		entry := engine.PriceEntry{StoreID: a.store, BrandID: a.brand, Price: decimal.RequireFromString(a.price)}
		if err := store.SavePrice(ctx, entry); err != nil {
			return fmt.Errorf("price %d/%d: %w", a.store, a.brand, err)
		}
	}
	for _, pa := range s.coverage {
		if err := store.SavePromoterAssignment(ctx, pa); err != nil {
			return fmt.Errorf("coverage %d: %w", pa.PromoterID, err)
		}
	}

	for _, sv := range s.visits {
		v := engine.Visit{
			Promoter: engine.PromoterRef{ID: sv.promoter},
			Store:    engine.StoreRef{ID: sv.store},
			Brand:    engine.BrandRef{ID: sv.brand},
			Date:     monday.AddDays(sv.day),
			Status:   sv.status,
		}
		if sv.override != "" {
			p := decimal.RequireFromString(sv.override)
			v.PriceOverride = &p
		}
		if _, err := store.CreateVisit(ctx, v); err != nil {
			return fmt.Errorf("visit day %d: %w", sv.day, err)
		}
	}
	return nil
}

// fieldTeam is the directory shared by every scenario.
func fieldTeam() scenarioSeed {
	centro, norte := 101, 102
	return scenarioSeed{
		promoters: []engine.Promoter{
			{ID: 1, Name: "Ana Lima"},
			{ID: 2, Name: "Bruno Costa"},
			{ID: 3, Name: "Carla Dias"},
		},
		stores: []engine.StoreRef{
			{ID: 10, Name: "Centro", Number: &centro},
			{ID: 11, Name: "Norte", Number: &norte},
			{ID: 12, Name: "Sul"},
		},
		brands: []engine.BrandRef{
			{ID: 100, Name: "Acme"},
			{ID: 101, Name: "Globo"},
		},
		assignments: []seedAssignment{
			{store: 10, brand: 100, target: 3, price: "25.00"},
			{store: 11, brand: 100, target: 2, price: "22.50"},
			{store: 10, brand: 101, target: 2, price: "18.00"},
			{store: 12, brand: 101, target: 1, price: "15.00"},
		},
		coverage: []engine.PromoterAssignment{
			{PromoterID: 1, StoreID: 10, BrandID: 100},
			{PromoterID: 1, StoreID: 10, BrandID: 101},
			{PromoterID: 2, StoreID: 11, BrandID: 100},
			{PromoterID: 3, StoreID: 12, BrandID: 101},
		},
	}
}

func weekVisits() []seedVisit {
	return []seedVisit{
		{promoter: 1, store: 10, brand: 100, day: 0, status: engine.StatusCompleted},
		{promoter: 1, store: 10, brand: 100, day: 2, status: engine.StatusCompleted, override: "30.00"},
		{promoter: 1, store: 10, brand: 100, day: 4, status: engine.StatusPending},
		{promoter: 1, store: 10, brand: 101, day: 1, status: engine.StatusInProgress},
		{promoter: 1, store: 10, brand: 101, day: 3, status: engine.StatusCancelled},
		{promoter: 2, store: 11, brand: 100, day: 1, status: engine.StatusCompleted},
		{promoter: 2, store: 11, brand: 100, day: 3, status: engine.StatusPending},
		{promoter: 3, store: 12, brand: 101, day: 2, status: engine.StatusCompleted},
		{promoter: 3, store: 12, brand: 101, day: 9, status: engine.StatusPending},
	}
}

func balancedWeekSeed() scenarioSeed {
	s := fieldTeam()
	s.visits = weekVisits()
	return s
}

func promoterGapSeed() scenarioSeed {
	s := fieldTeam()
	s.coverage = s.coverage[:3]
	s.visits = weekVisits()
	return s
}

func unpricedPairsSeed() scenarioSeed {
	s := fieldTeam()
	s.assignments[1].price = ""
	s.assignments[3].price = ""
	s.visits = weekVisits()
	return s
}
