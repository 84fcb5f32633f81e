// Package store provides in-memory engine.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/visit-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	visits      map[engine.VisitID]engine.Visit
	nextVisitID engine.VisitID
	prices      map[engine.PairKey]engine.PriceEntry
	assignments []engine.Assignment
	coverage    []engine.PromoterAssignment
	promoters   map[engine.PromoterID]engine.Promoter
}

func NewMemory() *Memory {
	return &Memory{
		visits:    make(map[engine.VisitID]engine.Visit),
		prices:    make(map[engine.PairKey]engine.PriceEntry),
		promoters: make(map[engine.PromoterID]engine.Promoter),
	}
}

// AddVisit stores v, assigning the next id when v.ID is zero.
func (m *Memory) AddVisit(v engine.Visit) engine.Visit {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v.ID == 0 {
		m.nextVisitID++
		v.ID = m.nextVisitID
	} else if v.ID > m.nextVisitID {
		m.nextVisitID = v.ID
	}
	m.visits[v.ID] = v
	return v
}

// UpdateVisitStatus changes the status of an existing visit.
func (m *Memory) UpdateVisitStatus(_ context.Context, id engine.VisitID, status engine.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.visits[id]
	if !ok {
		return engine.ErrVisitNotFound
	}
	v.Status = status
	m.visits[id] = v
	return nil
}

// SetPrice inserts or replaces the price of a pair.
func (m *Memory) SetPrice(p engine.PriceEntry) error {
	if err := engine.ValidateAmount(p.Price); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[p.Pair()] = p
	return nil
}

func (m *Memory) AddAssignment(a engine.Assignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments = append(m.assignments, a)
}

func (m *Memory) AddPromoterAssignment(pa engine.PromoterAssignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coverage = append(m.coverage, pa)
}

func (m *Memory) AddPromoter(p engine.Promoter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promoters[p.ID] = p
}

// =============================================================================
// engine.Store
// =============================================================================

func (m *Memory) ListVisits(_ context.Context, q engine.VisitQuery) ([]engine.Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]engine.Visit, 0, len(m.visits))
	for _, v := range m.visits {
		if q.PromoterID != nil && v.Promoter.ID != *q.PromoterID {
			continue
		}
		if q.Start != nil && v.Date.Before(*q.Start) {
			continue
		}
		if q.End != nil && v.Date.After(*q.End) {
			continue
		}
		if q.Status != nil && v.Status != *q.Status {
			continue
		}
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) GetVisit(_ context.Context, id engine.VisitID) (*engine.Visit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.visits[id]
	if !ok {
		return nil, engine.ErrVisitNotFound
	}
	return &v, nil
}

func (m *Memory) ListPrices(_ context.Context) ([]engine.PriceEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]engine.PriceEntry, 0, len(m.prices))
	for _, p := range m.prices {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StoreID != result[j].StoreID {
			return result[i].StoreID < result[j].StoreID
		}
		return result[i].BrandID < result[j].BrandID
	})
	return result, nil
}

func (m *Memory) ListAssignments(_ context.Context) ([]engine.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]engine.Assignment, len(m.assignments))
	copy(result, m.assignments)
	return result, nil
}

func (m *Memory) ListPromoterAssignments(_ context.Context, promoter *engine.PromoterID) ([]engine.PromoterAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.PromoterAssignment
	for _, pa := range m.coverage {
		if promoter == nil || pa.PromoterID == *promoter {
			result = append(result, pa)
		}
	}
	return result, nil
}

func (m *Memory) ListPromoters(_ context.Context) ([]engine.Promoter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]engine.Promoter, 0, len(m.promoters))
	for _, p := range m.promoters {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

var _ engine.Store = (*Memory)(nil)
