// Package httpapi exposes the engine's debug and control HTTP surface
// (component C12), grounded on the chi-based wiring in
// lake/api/main.go: a chi router with the logging and recovery
// middleware, JSON handlers for the snapshot endpoints, and the
// control endpoints. Prometheus metrics are not mounted here.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/routelab/ripsim/internal/network"
)

// NewRouter builds the chi router serving snapshot reads and the
// control surface. Prometheus metrics are served on their own
// listener (see cmd/routesimd), mirroring lake/api/main.go's separate
// metrics server rather than mounting /metrics alongside the API.
func NewRouter(n *network.Network) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/snapshot/tables", handleSnapshotTables(n))
	r.Get("/snapshot/links", handleSnapshotLinks(n))
	r.Get("/snapshot/stats", handleSnapshotStats(n))
	r.Post("/control/toggle-periodic-updates", handleTogglePeriodicUpdates(n))
	r.Post("/control/restart", handleRestart(n))

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func handleSnapshotTables(n *network.Network) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, n.SnapshotTables())
	}
}

func handleSnapshotLinks(n *network.Network) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, n.SnapshotLinks())
	}
}

func handleSnapshotStats(n *network.Network) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, n.SnapshotStats())
	}
}

type toggleResponse struct {
	PeriodicUpdatesEnabled bool      `json:"periodic_updates_enabled"`
	At                     time.Time `json:"at"`
}

func handleTogglePeriodicUpdates(n *network.Network) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enabled := n.TogglePeriodicUpdates()
		writeJSON(w, toggleResponse{PeriodicUpdatesEnabled: enabled, At: time.Now()})
	}
}

func handleRestart(n *network.Network) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n.Restart()
		w.WriteHeader(http.StatusNoContent)
	}
}
