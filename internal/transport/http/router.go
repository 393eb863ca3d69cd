package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"resights/internal/platform/middleware"
)

// RouterConfig carries the optional pieces of the router.
type RouterConfig struct {
	// Validator enables bearer-token auth on registry routes when set.
	Validator middleware.TokenValidator
	// Gatherer backs /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// NewRouter wires all public endpoints. Liveness and metrics stay open; the
// registry routes sit behind auth when a validator is configured.
func NewRouter(h *RegistryHandler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, req, logger, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if cfg.Validator != nil {
			r.Use(middleware.RequireAuth(cfg.Validator, logger))
		}
		h.Register(r)
	})
	return r
}
