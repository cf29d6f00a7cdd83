package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/desertthunder/anilistx/internal/services"
)

const healthTimeout = 2 * time.Second

// statsReporter is implemented by [services.CachedCatalog].
type statsReporter interface {
	Stats() services.CacheStats
}

// NewRouter builds the API router.
//
// Middleware order: request id, real ip, panic recovery, request logging, metrics, then auth
// extraction. Handlers without a store in deps are not mounted.
func NewRouter(deps Deps) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(RequestLogger(logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Instrument)
	}
	if deps.Auth != nil {
		r.Use(deps.Auth.Middleware)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/healthz", healthz(deps))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	handlers := []Handler{}
	if deps.Catalog != nil {
		handlers = append(handlers, NewCatalogHandler(deps.Catalog, logger))
	}
	if deps.Reviews != nil {
		handlers = append(handlers, NewReviewsHandler(deps.Reviews, logger))
	}
	if deps.Lists != nil {
		handlers = append(handlers, NewListHandler(deps.Lists, deps.Enricher, deps.EnrichTimeout, logger))
	}
	if deps.Profiles != nil {
		handlers = append(handlers, NewProfileHandler(deps.Profiles, logger))
	}
	for _, h := range handlers {
		h.Mount(r)
	}
	return r
}

// healthz reports liveness, database reachability and cache counters.
func healthz(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}
		status := http.StatusOK

		if deps.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := deps.DB.PingContext(ctx); err != nil {
				body["status"] = "degraded"
				body["database"] = err.Error()
				status = http.StatusServiceUnavailable
			} else {
				body["database"] = "ok"
			}
		}
		if s, ok := deps.Catalog.(statsReporter); ok {
			body["cache"] = s.Stats()
		}
		respond(w, status, body)
	}
}
