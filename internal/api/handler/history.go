package handler

import (
	"log/slog"
	"net/http"

	"github.com/vidgrab/vidgrab/internal/domain"
	"github.com/vidgrab/vidgrab/internal/history"
)

// HistoryHandler exposes the download history.
type HistoryHandler struct {
	store  history.Store
	logger *slog.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(store history.Store, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		store:  store,
		logger: logger,
	}
}

// HistoryListResponse contains the download history, most-recent-first.
type HistoryListResponse struct {
	Entries []domain.HistoryEntry `json:"entries"`
	Total   int                   `json:"total"`
}

// List handles GET /api/v1/history.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list history", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	respondJSON(w, http.StatusOK, HistoryListResponse{
		Entries: entries,
		Total:   len(entries),
	})
}

// Clear handles DELETE /api/v1/history.
func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(r.Context()); err != nil {
		h.logger.Error("failed to clear history", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
