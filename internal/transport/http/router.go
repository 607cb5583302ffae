package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"claimverifier/internal/platform/metrics"
	"claimverifier/pkg/platform/httputil"
	"claimverifier/pkg/platform/middleware/metadata"
	"claimverifier/pkg/platform/middleware/requesttime"
)

const healthCheckTimeout = 2 * time.Second

// RouteRegistrar is implemented by feature handlers that mount their own routes.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config wires the router.
type Config struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	// Clock overrides the request clock; nil means time.Now.
	Clock    func() time.Time
	Checks   map[string]HealthCheck
	Handlers []RouteRegistrar
}

// NewRouter wires all public endpoints behind the shared middleware chain.
func NewRouter(cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metadata.ClientMetadata)
	if cfg.Clock != nil {
		r.Use(requesttime.WithClock(cfg.Clock))
	} else {
		r.Use(requesttime.Middleware)
	}
	r.Use(cfg.Metrics.Middleware)

	r.Get("/healthz", healthHandler(cfg.Checks, cfg.Logger))
	r.Handle("/metrics", promhttp.Handler())

	for _, h := range cfg.Handlers {
		h.Register(r)
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthHandler runs every dependency check and answers 503 if any fails.
func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		for name, check := range checks {
			if resp.Checks == nil {
				resp.Checks = make(map[string]string, len(checks))
			}
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
