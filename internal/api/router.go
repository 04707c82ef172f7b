package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cohortlens/internal/middleware"
)

// RouterOptions configures the middleware chain.
type RouterOptions struct {
	// RateLimiter throttles the /api routes. Nil disables rate limiting.
	RateLimiter        *middleware.RateLimiter
	CORSAllowedOrigins []string
	Logger             *slog.Logger
}

// NewRouter mounts the API, health and metrics routes.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = h.logger
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if opts.RateLimiter != nil {
			r.Use(opts.RateLimiter.Handler)
		}
		if h.datasets != nil {
			r.Get("/datasets", h.listDatasets)
		}
		r.Route("/datasets/{dataset}/tables/{table}", func(r chi.Router) {
			r.Post("/aggregations", h.tableAggregations)
			r.Post("/columns/{column}/aggregation", h.columnAggregation)
			r.Post("/survival", h.survival)
			r.Post("/explain", h.explain)
		})
	})

	return r
}
