package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/streamlinks/internal/httpserver/deps"
)

type componentStatus struct {
	OK         bool   `json:"ok"`
	Mode       string `json:"mode,omitempty"`
	Source     string `json:"source,omitempty"`
	Seen       *int   `json:"seen,omitempty"`
	Active     *int   `json:"active,omitempty"`
	LastSeeded string `json:"last_seeded,omitempty"`
	Error      string `json:"error,omitempty"`
}

type statusResponse struct {
	State      string                     `json:"state"`
	Components map[string]componentStatus `json:"components"`
}

// Status summarizes the observer, the pipeline and storage.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seen := d.Links.Total()
		active := d.Badge.Count()
		lastSeeded := "never"
		if ts := d.Links.LastSeeded(); !ts.IsZero() {
			lastSeeded = ts.UTC().Format(time.RFC3339)
		}

		components := map[string]componentStatus{
			"observer": {
				OK:     true,
				Mode:   d.ScanMode,
				Source: d.PageSource,
			},
			"pipeline": {
				OK:         true,
				Seen:       &seen,
				Active:     &active,
				LastSeeded: lastSeeded,
			},
			"redis": checkStore(r.Context(), d),
		}

		writeJSON(w, http.StatusOK, statusResponse{
			State:      overallState(components),
			Components: components,
		})
	}
}

// overallState is "degraded" when storage is down: passes keep running but
// nothing new gets stored.
func overallState(components map[string]componentStatus) string {
	if redis, ok := components["redis"]; ok && !redis.OK {
		return "degraded"
	}
	return "ok"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{OK: false, Error: "client not initialized"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}
	return componentStatus{OK: true}
}
