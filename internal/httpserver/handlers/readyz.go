package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
)

// pingTimeout bounds each dependency probe.
const pingTimeout = 2 * time.Second

type readyzResponse struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Readyz pings every dependency; any failure answers 503.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := runChecks(r.Context(), d.Checks)

		ready := true
		for _, res := range results {
			if res != "ok" {
				ready = false
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if ready {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(readyzResponse{
			Ready:  ready,
			Checks: results,
		})
	}
}

// runChecks returns "ok" or the error text per check name.
func runChecks(ctx context.Context, checks []deps.Check) map[string]string {
	results := make(map[string]string, len(checks))
	for _, c := range checks {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := c.Ping(pctx)
		cancel()
		if err != nil {
			results[c.Name] = err.Error()
			continue
		}
		results[c.Name] = "ok"
	}
	return results
}
