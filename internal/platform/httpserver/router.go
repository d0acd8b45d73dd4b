package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	dErrors "relay/pkg/domain-errors"
	"relay/pkg/platform/httputil"
)

// Check probes one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// NewRouter mounts /metrics and /healthz. Checks run sequentially with a
// shared timeout; any failure turns the response into 503.
func NewRouter(metrics http.Handler, checks map[string]Check) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", metrics)
	r.Get("/healthz", healthHandler(checks))
	return r
}

func healthHandler(checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			httputil.WriteJSON(w, httputil.StatusFor(dErrors.CodeUnavailable), map[string]any{
				"status": "unhealthy",
				"checks": status,
			})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"checks": status,
		})
	}
}
