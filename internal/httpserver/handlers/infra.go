package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Count  *int64 `json:"count,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Impact string `json:"impact,omitempty"`
	Error  string `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

// impacts describes what a dependency outage breaks.
var impacts = map[string]string{
	"postgres": "bookmarks-unavailable",
	"redis":    "sign-in-and-live-updates-unavailable",
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := make(map[string]componentStatus, len(d.Checks)+4)

		for name, res := range runChecks(r.Context(), d.Checks) {
			if res == "ok" {
				components[name] = componentStatus{OK: true}
				continue
			}
			components[name] = componentStatus{OK: false, Impact: impacts[name], Error: res}
		}

		components["realtime"] = counter(d.Stats.ActiveChannels, string(d.ViewOptions.Mode))
		components["identity"] = counter(d.Stats.AuthListeners, "")
		if d.Views != nil {
			components["views"] = counter(d.Views.Len, "")
		}
		if d.Stats.Sessions != nil {
			n, err := d.Stats.Sessions(r.Context())
			if err != nil {
				components["sessions"] = componentStatus{OK: false, Error: err.Error()}
			} else {
				components["sessions"] = componentStatus{OK: true, Count: &n}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(infraResponse{
			Status:     determineStatus(components),
			Components: components,
		})
	}
}

func counter(f func() int, mode string) componentStatus {
	if f == nil {
		return componentStatus{OK: false, Mode: mode, Error: "not wired"}
	}
	n := int64(f())
	return componentStatus{OK: true, Count: &n, Mode: mode}
}

func determineStatus(components map[string]componentStatus) string {
	// Postgres down = nothing to show
	if pg, exists := components["postgres"]; exists && !pg.OK {
		return "critical"
	}

	// Redis down = no sign-in, no live updates
	if redis, exists := components["redis"]; exists && !redis.OK {
		return "degraded"
	}

	return "operational"
}
