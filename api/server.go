/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in access logs
  2. RealIP:     Honour X-Forwarded-For from the reverse proxy
  3. Logging:    zerolog access log (method, path, status, bytes, duration)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Timeout:    60s request deadline
  6. CORS:       Cross-origin requests for the dashboard frontend

ROUTE GROUPS:
  /health               Liveness + database ping (no identity)
  /api/scenarios/*      Demo scenarios (no identity)
  /api/dashboard        Compliance snapshot
  /api/visits/*         Visit listing and scheduling
  /api/reports/*        Billing report and exports
  /api/prices/*         Price table administration and audit

IDENTITY:
  Everything except /health and /api/scenarios passes through
  Handler.RequireScope, which turns X-User-Role / X-Promoter-ID into an
  engine.Scope.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultCORSOrigins are used when NewRouter is given no origins.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	if len(corsOrigins) == 0 {
		corsOrigins = DefaultCORSOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderRole, HeaderPromoterID},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.RequireScope)

			r.Get("/dashboard", h.GetDashboard)

			// Visit routes
			r.Route("/visits", func(r chi.Router) {
				r.Get("/", h.ListVisits)
				r.Post("/", h.CreateVisit)
				r.Patch("/{id}/status", h.UpdateVisitStatus)
			})

			// Report routes
			r.Route("/reports", func(r chi.Router) {
				r.Get("/visits", h.GetVisitReport)
				r.Get("/visits/export", h.ExportVisitReport)
			})

			// Price routes
			r.Route("/prices", func(r chi.Router) {
				r.Get("/", h.ListPrices)
				r.Put("/", h.SetPrice)
				r.Get("/resolve", h.ResolvePrice)
				r.Get("/gaps", h.PriceGaps)
				r.Delete("/{store}/{brand}", h.DeletePrice)
			})
		})
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
