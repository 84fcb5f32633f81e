/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY AND DATES:
  Money is always a string with two decimals ("25.50"), never a JSON number,
  so clients don't round-trip it through floating point. Dates are
  YYYY-MM-DD strings.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/visit-engine/engine"
)

// =============================================================================
// SHARED
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type PromoterDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type StoreDTO struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Number *int   `json:"number,omitempty"`
}

type BrandDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

// percent rounds a progress value to two decimals for display.
func percent(p float64) float64 { return math.Round(p*100) / 100 }

func datePtr(d *engine.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func toPromoterDTO(p engine.PromoterRef) PromoterDTO { return PromoterDTO{ID: int64(p.ID), Name: p.Name} }
func toStoreDTO(s engine.StoreRef) StoreDTO {
	return StoreDTO{ID: int64(s.ID), Name: s.Name, Number: s.Number}
}
func toBrandDTO(b engine.BrandRef) BrandDTO { return BrandDTO{ID: int64(b.ID), Name: b.Name} }

// =============================================================================
// VISITS
// =============================================================================

type VisitDTO struct {
	ID            int64       `json:"id"`
	Promoter      PromoterDTO `json:"promoter"`
	Store         StoreDTO    `json:"store"`
	Brand         BrandDTO    `json:"brand"`
	VisitDate     string      `json:"visit_date"`
	Status        string      `json:"status"`
	PriceOverride *string     `json:"price_override,omitempty"`
}

func toVisitDTO(v engine.Visit) VisitDTO {
	dto := VisitDTO{
		ID:        int64(v.ID),
		Promoter:  toPromoterDTO(v.Promoter),
		Store:     toStoreDTO(v.Store),
		Brand:     toBrandDTO(v.Brand),
		VisitDate: v.Date.String(),
		Status:    string(v.Status),
	}
	if v.PriceOverride != nil {
		s := money(*v.PriceOverride)
		dto.PriceOverride = &s
	}
	return dto
}

func toVisitDTOs(visits []engine.Visit) []VisitDTO {
	out := make([]VisitDTO, 0, len(visits))
	for _, v := range visits {
		out = append(out, toVisitDTO(v))
	}
	return out
}

// CreateVisitRequest schedules a visit. PromoterID defaults to the caller
// for promoters.
type CreateVisitRequest struct {
	PromoterID    int64   `json:"promoter_id"`
	StoreID       int64   `json:"store_id"`
	BrandID       int64   `json:"brand_id"`
	VisitDate     string  `json:"visit_date"`
	Status        string  `json:"status,omitempty"`
	PriceOverride *string `json:"price_override,omitempty"`
}

type UpdateVisitStatusRequest struct {
	Status string `json:"status"`
}

// =============================================================================
// DASHBOARD
// =============================================================================

type DashboardDTO struct {
	PeriodStart string                `json:"period_start"`
	PeriodEnd   string                `json:"period_end"`
	Role        string                `json:"role"`
	Totals      TotalsDTO             `json:"totals"`
	Brands      []BrandProgressDTO    `json:"brands"`
	Promoters   []PromoterProgressDTO `json:"promoters,omitempty"`
	Upcoming    []VisitDTO            `json:"upcoming_visits,omitempty"`
}

type TotalsDTO struct {
	TotalVisits     int    `json:"total_visits"`
	TotalCompleted  int    `json:"total_completed"`
	TotalPending    int    `json:"total_pending"`
	TotalInProgress int    `json:"total_in_progress"`
	CompletedValue  string `json:"completed_value"`
}

type StoreProgressDTO struct {
	Store           StoreDTO `json:"store"`
	TargetFrequency int      `json:"target_frequency"`
	VisitsDone      int      `json:"visits_done"`
	VisitsPending   int      `json:"visits_pending"`
	VisitsRemaining int      `json:"visits_remaining"`
	TotalVisits     int      `json:"total_visits"`
	Progress        float64  `json:"progress"`
	LastVisitDate   *string  `json:"last_visit_date"`
}

type BrandProgressDTO struct {
	Brand               BrandDTO           `json:"brand"`
	Stores              []StoreProgressDTO `json:"stores"`
	TotalStores         int                `json:"total_stores"`
	TotalVisitsDone     int                `json:"total_visits_done"`
	TotalVisitsPending  int                `json:"total_visits_pending"`
	TotalVisitsExpected int                `json:"total_visits_expected"`
	TotalProgress       float64            `json:"total_progress"`
}

type PromoterProgressDTO struct {
	Promoter        PromoterDTO `json:"promoter"`
	TargetFrequency int         `json:"target_frequency"`
	VisitsDone      int         `json:"visits_done"`
	VisitsPending   int         `json:"visits_pending"`
	VisitsRemaining int         `json:"visits_remaining"`
	TotalVisits     int         `json:"total_visits"`
	Progress        float64     `json:"progress"`
	LastVisitDate   *string     `json:"last_visit_date"`
}

func toDashboardDTO(s *engine.DashboardSnapshot) DashboardDTO {
	dto := DashboardDTO{
		PeriodStart: s.Window.Start.String(),
		PeriodEnd:   s.Window.End.String(),
		Role:        string(s.Scope.Role),
		Totals: TotalsDTO{
			TotalVisits:     s.Totals.TotalVisits,
			TotalCompleted:  s.Totals.TotalCompleted,
			TotalPending:    s.Totals.TotalPending,
			TotalInProgress: s.Totals.TotalInProgress,
			CompletedValue:  money(s.Totals.CompletedValue),
		},
		Brands: make([]BrandProgressDTO, 0, len(s.Brands)),
	}

	for _, b := range s.Brands {
		bd := BrandProgressDTO{
			Brand:               toBrandDTO(b.Brand),
			Stores:              make([]StoreProgressDTO, 0, len(b.Stores)),
			TotalStores:         b.TotalStores,
			TotalVisitsDone:     b.TotalVisitsDone,
			TotalVisitsPending:  b.TotalVisitsPending,
			TotalVisitsExpected: b.TotalVisitsExpected,
			TotalProgress:       percent(b.TotalProgress),
		}
		for _, sp := range b.Stores {
			bd.Stores = append(bd.Stores, StoreProgressDTO{
				Store:           toStoreDTO(sp.Store),
				TargetFrequency: sp.TargetFrequency,
				VisitsDone:      sp.VisitsDone,
				VisitsPending:   sp.VisitsPending,
				VisitsRemaining: sp.VisitsRemaining,
				TotalVisits:     sp.TotalVisits,
				Progress:        percent(sp.Progress),
				LastVisitDate:   datePtr(sp.LastVisitDate),
			})
		}
		dto.Brands = append(dto.Brands, bd)
	}

	if s.Promoters != nil {
		dto.Promoters = make([]PromoterProgressDTO, 0, len(s.Promoters))
		for _, p := range s.Promoters {
			dto.Promoters = append(dto.Promoters, PromoterProgressDTO{
				Promoter:        toPromoterDTO(p.Promoter),
				TargetFrequency: p.TargetFrequency,
				VisitsDone:      p.VisitsDone,
				VisitsPending:   p.VisitsPending,
				VisitsRemaining: p.VisitsRemaining,
				TotalVisits:     p.TotalVisits,
				Progress:        percent(p.Progress),
				LastVisitDate:   datePtr(p.LastVisitDate),
			})
		}
	}
	if s.Upcoming != nil {
		dto.Upcoming = toVisitDTOs(s.Upcoming)
	}
	return dto
}

// =============================================================================
// REPORTS
// =============================================================================

type ReportRowDTO struct {
	VisitID    int64       `json:"visit_id"`
	VisitDate  string      `json:"visit_date"`
	Promoter   PromoterDTO `json:"promoter"`
	Store      StoreDTO    `json:"store"`
	Brand      BrandDTO    `json:"brand"`
	Status     string      `json:"status"`
	Price      string      `json:"price"`
	Count      int         `json:"count"`
	Cumulative string      `json:"cumulative"`
	EndsGroup  bool        `json:"ends_group"`
}

type PromoterTotalDTO struct {
	Promoter PromoterDTO `json:"promoter"`
	Count    int         `json:"count"`
	Total    string      `json:"total"`
}

type ReportDTO struct {
	Rows       []ReportRowDTO     `json:"rows"`
	Summary    []PromoterTotalDTO `json:"summary"`
	TotalCount int                `json:"total_count"`
	TotalValue string             `json:"total_value"`
}

func toReportDTO(r *engine.Report) ReportDTO {
	dto := ReportDTO{
		Rows:       make([]ReportRowDTO, 0, len(r.Rows)),
		Summary:    make([]PromoterTotalDTO, 0, len(r.Summary)),
		TotalCount: r.TotalCount,
		TotalValue: money(r.TotalValue),
	}
	for _, row := range r.Rows {
		dto.Rows = append(dto.Rows, ReportRowDTO{
			VisitID:    int64(row.VisitID),
			VisitDate:  row.Date.String(),
			Promoter:   toPromoterDTO(row.Promoter),
			Store:      toStoreDTO(row.Store),
			Brand:      toBrandDTO(row.Brand),
			Status:     string(row.Status),
			Price:      money(row.Price),
			Count:      row.Count,
			Cumulative: money(row.Cumulative),
			EndsGroup:  row.EndsGroup,
		})
	}
	for _, t := range r.Summary {
		dto.Summary = append(dto.Summary, PromoterTotalDTO{
			Promoter: toPromoterDTO(t.Promoter),
			Count:    t.Count,
			Total:    money(t.Total),
		})
	}
	return dto
}

// =============================================================================
// PRICES
// =============================================================================

type PriceDTO struct {
	StoreID int64  `json:"store_id"`
	BrandID int64  `json:"brand_id"`
	Price   string `json:"price"`
}

// SetPriceRequest sets the price of a pair. Price is a decimal string.
type SetPriceRequest struct {
	StoreID int64  `json:"store_id"`
	BrandID int64  `json:"brand_id"`
	Price   string `json:"price"`
}

type PriceGapDTO struct {
	Store           StoreDTO `json:"store"`
	Brand           BrandDTO `json:"brand"`
	TargetFrequency int      `json:"target_frequency"`
}

type AuditRunDTO struct {
	ID         string        `json:"id"`
	StartedAt  string        `json:"started_at"`
	DurationMS int64         `json:"duration_ms"`
	Gaps       []PriceGapDTO `json:"gaps"`
	Error      string        `json:"error,omitempty"`
}

func toAuditRunDTO(run *AuditRun) AuditRunDTO {
	dto := AuditRunDTO{
		ID:         run.ID,
		StartedAt:  run.StartedAt.UTC().Format(time.RFC3339),
		DurationMS: run.Duration.Milliseconds(),
		Gaps:       make([]PriceGapDTO, 0, len(run.Gaps)),
		Error:      run.Err,
	}
	for _, g := range run.Gaps {
		dto.Gaps = append(dto.Gaps, PriceGapDTO{
			Store:           toStoreDTO(g.Store),
			Brand:           toBrandDTO(g.Brand),
			TargetFrequency: g.TargetFrequency,
		})
	}
	return dto
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}
