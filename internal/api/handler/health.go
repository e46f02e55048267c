package handler

import (
	"net/http"
	"time"

	"github.com/vidgrab/vidgrab/internal/history"
	"github.com/vidgrab/vidgrab/internal/platform"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	registry *platform.Registry
	store    history.Store
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(registry *platform.Registry, store history.Store) *HealthHandler {
	return &HealthHandler{
		registry: registry,
		store:    store,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string   `json:"status"`
	Timestamp string   `json:"timestamp"`
	Platforms []string `json:"platforms,omitempty"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe; checks the history store.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.List(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "error",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	platforms := h.registry.Platforms()
	names := make([]string, 0, len(platforms))
	for _, p := range platforms {
		names = append(names, p.String())
	}

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Platforms: names,
	})
}
