/*
handlers.go - HTTP API handlers for the visit compliance engine

PURPOSE:
  Exposes the engine via REST API. Handles HTTP request/response, JSON
  serialization, identity headers, and delegates to the engine services.

ENDPOINTS:
  Dashboard:
    GET    /api/dashboard                 Compliance snapshot (?period=week|month&start=&end=)

  Visits:
    GET    /api/visits                    Scoped, filtered visit list
    POST   /api/visits                    Schedule a visit
    PATCH  /api/visits/{id}/status        Change visit status

  Reports:
    GET    /api/reports/visits            Rows with running totals + summary
    GET    /api/reports/visits/export     Same as a file (?format=csv|xlsx|pdf)

  Prices:
    GET    /api/prices                    Price table
    PUT    /api/prices                    Set one price (managers/analysts)
    DELETE /api/prices/{store}/{brand}    Remove one price
    GET    /api/prices/resolve            Effective price of a pair
    GET    /api/prices/gaps               Assigned pairs with no price

IDENTITY:
  X-User-Role:   promoter | analyst | manager (or legacy codes 1..3)
  X-Promoter-ID: required for promoters
  Authentication itself happens upstream; this layer only maps the headers
  into an engine.Scope.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed range, invalid status/price, unknown reference, bad params
  - 401: Missing or unknown role / promoter identity
  - 403: Promoter acting on another promoter's data
  - 404: Visit or price not found
  - 409: Promoter without assignments (code "no_assignment")
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/visit-engine/engine"
	"github.com/warp/visit-engine/export"
	"github.com/warp/visit-engine/logger"
	"github.com/warp/visit-engine/store/sqlite"
)

const (
	HeaderRole       = "X-User-Role"
	HeaderPromoterID = "X-Promoter-ID"
)

// errBadRequest marks malformed query parameters and bodies.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Assembler *engine.Assembler
	Reports   *engine.ReportService
	Audit     *PriceAuditScheduler

	// DefaultPeriod is used when a dashboard request names no period.
	DefaultPeriod engine.WindowKind
	// Now is the clock for default windows; the engine itself never reads it.
	Now func() time.Time

	log zerolog.Logger

	// scenarioMu serializes scenario loads and resets and guards currentScenario.
	scenarioMu      sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, log zerolog.Logger) *Handler {
	return &Handler{
		Store:         store,
		Assembler:     engine.NewAssembler(store),
		Reports:       engine.NewReportService(store),
		Audit:         NewPriceAuditScheduler(store, "", log),
		DefaultPeriod: engine.WindowWeek,
		Now:           time.Now,
		log:           logger.Component(log, "api"),
	}
}

// =============================================================================
// IDENTITY
// =============================================================================

type scopeKey struct{}

// RequireScope resolves the identity headers into an engine.Scope and stores
// it in the request context. Requests without a valid identity get 401.
func (h *Handler) RequireScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, err := scopeFromHeaders(r.Header)
		if err != nil {
			h.writeEngineError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), scopeKey{}, scope)))
	})
}

func scopeFromHeaders(hdr http.Header) (engine.Scope, error) {
	role, err := engine.ParseRole(hdr.Get(HeaderRole))
	if err != nil {
		return engine.Scope{}, err
	}
	scope := engine.Scope{Role: role}
	if role != engine.RolePromoter {
		return scope, nil
	}

	raw := strings.TrimSpace(hdr.Get(HeaderPromoterID))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return engine.Scope{}, fmt.Errorf("%w: promoter role requires a valid %s", engine.ErrUnknownRole, HeaderPromoterID)
	}
	scope.Identity = engine.PromoterID(id)
	return scope, nil
}

func scopeFrom(ctx context.Context) engine.Scope {
	scope, _ := ctx.Value(scopeKey{}).(engine.Scope)
	return scope
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness and database reachability.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unreachable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// DASHBOARD
// =============================================================================

// GetDashboard returns the compliance snapshot for the caller.
// GET /api/dashboard?period=week|month&start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	window, err := h.windowFromQuery(r)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	snap, err := h.Assembler.Assemble(r.Context(), window, scopeFrom(r.Context()))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(snap))
}

// windowFromQuery uses explicit start/end when both are given, otherwise the
// window of the requested period containing today.
func (h *Handler) windowFromQuery(r *http.Request) (engine.Window, error) {
	q := r.URL.Query()
	start, end := q.Get("start"), q.Get("end")

	if start != "" || end != "" {
		if start == "" || end == "" {
			return engine.Window{}, badRequest("start and end must be given together")
		}
		s, err := engine.ParseDate(start)
		if err != nil {
			return engine.Window{}, badRequest("start: %v", err)
		}
		e, err := engine.ParseDate(end)
		if err != nil {
			return engine.Window{}, badRequest("end: %v", err)
		}
		return engine.NewWindow(s, e)
	}

	kind := h.DefaultPeriod
	if p := q.Get("period"); p != "" {
		k, err := engine.ParseWindowKind(p)
		if err != nil {
			return engine.Window{}, badRequest("%v", err)
		}
		kind = k
	}
	return engine.WindowFor(kind, h.Now()), nil
}

// =============================================================================
// VISITS
// =============================================================================

// ListVisits returns the caller's view of visits.
// GET /api/visits?promoter_id=&store_id=&brand_id=&start_date=&end_date=
func (h *Handler) ListVisits(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	if err := f.Validate(); err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	raw, err := h.Store.ListVisits(r.Context(), f.Query())
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	visits, err := engine.FilterVisits(raw, f)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"visits": toVisitDTOs(visits)})
}

// CreateVisit schedules a visit. Promoters may only create their own.
// POST /api/visits
func (h *Handler) CreateVisit(w http.ResponseWriter, r *http.Request) {
	scope := scopeFrom(r.Context())

	var req CreateVisitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeEngineError(w, r, badRequest("invalid JSON: %v", err))
		return
	}

	if scope.IsPromoter() {
		if req.PromoterID == 0 {
			req.PromoterID = int64(scope.Identity)
		}
		if engine.PromoterID(req.PromoterID) != scope.Identity {
			h.writeEngineError(w, r, fmt.Errorf("%w: cannot schedule visits for promoter %d", engine.ErrForbidden, req.PromoterID))
			return
		}
	}
	if req.PromoterID <= 0 || req.StoreID <= 0 || req.BrandID <= 0 {
		h.writeEngineError(w, r, badRequest("promoter_id, store_id and brand_id are required"))
		return
	}

	date, err := engine.ParseDate(req.VisitDate)
	if err != nil {
		h.writeEngineError(w, r, badRequest("visit_date: %v", err))
		return
	}

	v := engine.Visit{
		Promoter: engine.PromoterRef{ID: engine.PromoterID(req.PromoterID)},
		Store:    engine.StoreRef{ID: engine.StoreID(req.StoreID)},
		Brand:    engine.BrandRef{ID: engine.BrandID(req.BrandID)},
		Date:     date,
		Status:   engine.StatusPending,
	}
	if req.Status != "" {
		if v.Status, err = engine.ParseStatus(req.Status); err != nil {
			h.writeEngineError(w, r, err)
			return
		}
	}
	if req.PriceOverride != nil {
		p, err := decimal.NewFromString(*req.PriceOverride)
		if err != nil {
			h.writeEngineError(w, r, badRequest("price_override: %v", err))
			return
		}
		v.PriceOverride = &p
	}

	created, err := h.Store.CreateVisit(r.Context(), v)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVisitDTO(*created))
}

// UpdateVisitStatus changes a visit's status. Promoters may only change
// their own visits.
// PATCH /api/visits/{id}/status
func (h *Handler) UpdateVisitStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := scopeFrom(ctx)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeEngineError(w, r, badRequest("invalid visit id"))
		return
	}

	var req UpdateVisitStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeEngineError(w, r, badRequest("invalid JSON: %v", err))
		return
	}
	status, err := engine.ParseStatus(req.Status)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	visit, err := h.Store.GetVisit(ctx, engine.VisitID(id))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	if scope.IsPromoter() && visit.Promoter.ID != scope.Identity {
		h.writeEngineError(w, r, fmt.Errorf("%w: visit %d belongs to another promoter", engine.ErrForbidden, id))
		return
	}

	if err := h.Store.UpdateVisitStatus(ctx, visit.ID, status); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	visit.Status = status
	writeJSON(w, http.StatusOK, toVisitDTO(*visit))
}

// filterFromQuery builds a VisitFilter from query parameters and the
// caller's scope.
func filterFromQuery(r *http.Request) (engine.VisitFilter, error) {
	q := r.URL.Query()
	f := engine.VisitFilter{Scope: scopeFrom(r.Context())}

	if v, err := optionalID(q.Get("promoter_id"), "promoter_id"); err != nil {
		return f, err
	} else if v != nil {
		id := engine.PromoterID(*v)
		f.PromoterID = &id
	}
	if v, err := optionalID(q.Get("store_id"), "store_id"); err != nil {
		return f, err
	} else if v != nil {
		id := engine.StoreID(*v)
		f.StoreID = &id
	}
	if v, err := optionalID(q.Get("brand_id"), "brand_id"); err != nil {
		return f, err
	} else if v != nil {
		id := engine.BrandID(*v)
		f.BrandID = &id
	}

	var err error
	if f.Start, err = optionalDate(q.Get("start_date"), "start_date"); err != nil {
		return f, err
	}
	if f.End, err = optionalDate(q.Get("end_date"), "end_date"); err != nil {
		return f, err
	}
	return f, nil
}

func optionalID(raw, name string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, badRequest("%s must be an integer", name)
	}
	return &v, nil
}

func optionalDate(raw, name string) (*engine.Date, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := engine.ParseDate(raw)
	if err != nil {
		return nil, badRequest("%s: %v", name, err)
	}
	return &d, nil
}

// =============================================================================
// REPORTS
// =============================================================================

// GetVisitReport returns report rows with per-promoter running totals.
// GET /api/reports/visits?promoter_id=&store_id=&brand_id=&start_date=&end_date=
func (h *Handler) GetVisitReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.generateReport(r)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// ExportVisitReport renders the report as a file download.
// GET /api/reports/visits/export?format=csv|xlsx|pdf&...
func (h *Handler) ExportVisitReport(w http.ResponseWriter, r *http.Request) {
	renderer, err := export.ForFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeEngineError(w, r, badRequest("%v", err))
		return
	}

	report, err := h.generateReport(r)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	// render fully first so a failure can still produce a JSON error
	var buf bytes.Buffer
	if err := renderer.Render(&buf, report); err != nil {
		h.writeEngineError(w, r, fmt.Errorf("render %s: %w", renderer.Extension(), err))
		return
	}

	w.Header().Set("Content-Type", renderer.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(report, renderer.Extension())))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) generateReport(r *http.Request) (*engine.Report, error) {
	f, err := filterFromQuery(r)
	if err != nil {
		return nil, err
	}
	return h.Reports.Generate(r.Context(), f)
}

// =============================================================================
// PRICES
// =============================================================================

// ListPrices returns the price table.
// GET /api/prices
func (h *Handler) ListPrices(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Store.ListPrices(r.Context())
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	dtos := make([]PriceDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, PriceDTO{StoreID: int64(e.StoreID), BrandID: int64(e.BrandID), Price: money(e.Price)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": dtos})
}

// SetPrice inserts or replaces the price of a pair.
// PUT /api/prices
func (h *Handler) SetPrice(w http.ResponseWriter, r *http.Request) {
	if err := requireStaff(r.Context()); err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	var req SetPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeEngineError(w, r, badRequest("invalid JSON: %v", err))
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		h.writeEngineError(w, r, badRequest("price: %v", err))
		return
	}

	entry := engine.PriceEntry{StoreID: engine.StoreID(req.StoreID), BrandID: engine.BrandID(req.BrandID), Price: price}
	if err := h.Store.SavePrice(r.Context(), entry); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PriceDTO{StoreID: req.StoreID, BrandID: req.BrandID, Price: money(price)})
}

// DeletePrice removes the price of a pair.
// DELETE /api/prices/{store}/{brand}
func (h *Handler) DeletePrice(w http.ResponseWriter, r *http.Request) {
	if err := requireStaff(r.Context()); err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	store, err1 := strconv.ParseInt(chi.URLParam(r, "store"), 10, 64)
	brand, err2 := strconv.ParseInt(chi.URLParam(r, "brand"), 10, 64)
	if err1 != nil || err2 != nil {
		h.writeEngineError(w, r, badRequest("store and brand must be integers"))
		return
	}

	if err := h.Store.DeletePrice(r.Context(), engine.StoreID(store), engine.BrandID(brand)); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResolvePrice returns the effective price of a pair, optionally with an
// override.
// GET /api/prices/resolve?store_id=&brand_id=&override=
func (h *Handler) ResolvePrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	store, err1 := strconv.ParseInt(q.Get("store_id"), 10, 64)
	brand, err2 := strconv.ParseInt(q.Get("brand_id"), 10, 64)
	if err1 != nil || err2 != nil {
		h.writeEngineError(w, r, badRequest("store_id and brand_id are required integers"))
		return
	}

	var override *decimal.Decimal
	if raw := q.Get("override"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			h.writeEngineError(w, r, badRequest("override: %v", err))
			return
		}
		override = &d
	}

	resolver, err := engine.LoadPriceResolver(r.Context(), h.Store)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	price := resolver.Resolve(engine.StoreID(store), engine.BrandID(brand), override)
	writeJSON(w, http.StatusOK, PriceDTO{StoreID: store, BrandID: brand, Price: money(price)})
}

// PriceGaps lists assigned pairs without a price. With cached=1 the last
// scheduled run is returned when there is one.
// GET /api/prices/gaps?cached=1
func (h *Handler) PriceGaps(w http.ResponseWriter, r *http.Request) {
	if cached, _ := strconv.ParseBool(r.URL.Query().Get("cached")); cached {
		if last := h.Audit.LastRun(); last != nil {
			writeJSON(w, http.StatusOK, toAuditRunDTO(last))
			return
		}
	}

	run, err := h.Audit.RunNow(r.Context())
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditRunDTO(run))
}

// requireStaff rejects promoters from price administration.
func requireStaff(ctx context.Context) error {
	if scopeFrom(ctx).IsPromoter() {
		return fmt.Errorf("%w: price administration", engine.ErrForbidden)
	}
	return nil
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.scenarioMu.Lock()
	defer h.scenarioMu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine and request errors to HTTP responses.
func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status  int
		code    string
		message string
	)
	switch {
	case errors.Is(err, errBadRequest), engine.IsClientError(err):
		status, code, message = http.StatusBadRequest, "invalid_request", "Invalid request"
	case errors.Is(err, engine.ErrUnknownRole):
		status, code, message = http.StatusUnauthorized, "unknown_role", "Unknown role or identity"
	case errors.Is(err, engine.ErrForbidden):
		status, code, message = http.StatusForbidden, "forbidden", "Forbidden"
	case engine.IsNotFound(err):
		status, code, message = http.StatusNotFound, "not_found", "Not found"
	case engine.IsSetupGap(err):
		status, code, message = http.StatusConflict, "no_assignment", "Promoter has no store/brand assignment"
	default:
		status, code, message = http.StatusInternalServerError, "internal", "Internal error"
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}

	resp := ErrorResponse{Error: message, Code: code, Details: err.Error()}
	writeJSON(w, status, resp)
}
