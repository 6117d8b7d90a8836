package health

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// Handler serves the monitor's results over HTTP.
type Handler struct {
	monitor *Monitor
}

// NewHandler wraps a Monitor for HTTP exposure.
func NewHandler(monitor *Monitor) *Handler {
	return &Handler{monitor: monitor}
}

// Router returns a router with the health endpoints mounted.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", h.handleLive).Methods(http.MethodGet)
	return r
}

// handleHealth runs the probe battery and reports the full result.
// Unhealthy maps to 503 so load balancers can act on the status code
// alone; degraded still serves traffic and stays 200.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	result := h.monitor.RunOnce(r.Context())

	status := http.StatusOK
	if result.Overall == Unhealthy {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(result); err != nil && h.monitor.logger != nil {
		h.monitor.logger.Error("Failed to encode health response: %v", err)
	}
}

// handleLive answers from the last retained result without probing,
// for cheap liveness polling between monitor ticks.
func (h *Handler) handleLive(w http.ResponseWriter, r *http.Request) {
	last := h.monitor.Last()
	if last == nil {
		http.Error(w, "no health data yet", http.StatusServiceUnavailable)
		return
	}

	status := http.StatusOK
	if last.Overall == Unhealthy {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(last); err != nil && h.monitor.logger != nil {
		h.monitor.logger.Error("Failed to encode health response: %v", err)
	}
}
