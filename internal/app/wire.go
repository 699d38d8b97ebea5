package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/accredit/compliance/internal/handler"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Service handler.ComplianceService
	Probes  map[string]handler.Probe
	Metrics http.Handler // nil disables /metrics
	Logger  *slog.Logger

	// Requests observes every served request; nil disables it.
	Requests handler.RequestObserver

	// RateLimitPerMinute caps /v1 requests per client IP; zero disables it.
	RateLimitPerMinute int
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger

	transferHandler := handler.NewTransferHandler(deps.Service)
	entryHandler := handler.NewEntryHandler(deps.Service)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger, deps.Requests))

	r.With(handler.JSONContentType).Get("/health", handler.HealthHandler(deps.Probes))
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(handler.JSONContentType)
		if deps.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(deps.RateLimitPerMinute, time.Minute))
		}

		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", transferHandler.Apply)
			r.Post("/check", transferHandler.Check)
		})

		r.Route("/registries/{registry}/entries/{wallet}", func(r chi.Router) {
			r.Get("/", entryHandler.Get)
			r.Get("/compliance", entryHandler.Compliance)
			r.Get("/transfers", entryHandler.Transfers)
		})
	})

	return r
}
