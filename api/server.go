/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Recoverer:  Panic recovery (500 instead of crash)
  2. RequestID:  Unique ID per request for tracing
  3. CORS:       Cross-origin requests for the office frontend

ROUTE GROUPS:
  /api/events          Action event ingestion
  /api/users/*         Per-user reads
  /api/achievements    Catalog
  /api/admin/*         Adjustments, reversals, reconciliation, rates
  /metrics             Prometheus
  /health              Liveness

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/officebrew/points-engine/metrics"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, m *metrics.Metrics) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/events", h.IngestEvent)

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/balance", h.GetBalance)
			r.Get("/ledger", h.GetLedger)
			r.Get("/achievements", h.GetAchievements)
			r.Get("/audit", h.GetAudit)
		})

		r.Get("/achievements", h.ListCatalog)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/adjustments", h.CreateAdjustment)
			r.Post("/entries/{id}/reverse", h.ReverseEntry)
			r.Post("/reconcile", h.TriggerReconcile)
			r.Post("/reconcile/{id}", h.TriggerReconcileUser)
			r.Get("/rates", h.GetRates)
			r.Put("/rates", h.UpdateRates)
		})
	})

	if m != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}
	r.Get("/health", h.Health)

	return r
}
