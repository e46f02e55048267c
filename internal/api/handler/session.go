package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidgrab/vidgrab/internal/domain"
	"github.com/vidgrab/vidgrab/internal/session"
	"github.com/vidgrab/vidgrab/internal/stream"
)

// SessionHandler exposes download sessions over HTTP.
type SessionHandler struct {
	manager *session.Manager
	logger  *slog.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(manager *session.Manager, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		logger:  logger,
	}
}

// CreateSessionRequest is the body of POST /api/v1/sessions.
type CreateSessionRequest struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`

	// PreviewOnly stops after the preview resolves instead of continuing
	// into the download.
	PreviewOnly bool `json:"preview_only,omitempty"`
}

// SessionResponse is a session snapshot in API responses.
type SessionResponse struct {
	ID          string               `json:"id"`
	Platform    string               `json:"platform"`
	State       string               `json:"state"`
	Progress    int                  `json:"progress"`
	RetryCount  int                  `json:"retry_count"`
	Preview     *domain.PreviewMedia `json:"preview,omitempty"`
	Error       string               `json:"error,omitempty"`
	FallbackURL string               `json:"fallback_url,omitempty"`
	SavedPath   string               `json:"saved_path,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

func toSessionResponse(s domain.Session) SessionResponse {
	return SessionResponse{
		ID:          s.ID.String(),
		Platform:    s.Platform.String(),
		State:       s.State.String(),
		Progress:    s.ProgressPercent,
		RetryCount:  s.RetryCount,
		Preview:     s.PreviewMedia,
		Error:       s.LastError,
		FallbackURL: s.FallbackURL,
		SavedPath:   s.SavedPath,
		CreatedAt:   s.CreatedAt,
	}
}

// Create handles POST /api/v1/sessions. The preview (and, unless
// preview_only, the download) runs asynchronously; clients poll the
// session or follow its event stream.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Platform == "" || req.URL == "" {
		respondError(w, http.StatusBadRequest, "platform and url are required")
		return
	}

	ctrl, err := h.manager.Create(domain.Platform(req.Platform))
	if err != nil {
		if errors.Is(err, domain.ErrUnknownPlatform) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !ctrl.Validate(req.URL) {
		h.manager.Remove(ctrl.ID())
		respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("not a valid %s video URL", req.Platform))
		return
	}

	go h.run(ctrl, req)

	respondJSON(w, http.StatusAccepted, toSessionResponse(ctrl.Session()))
}

// run drives one session through preview and download in the background.
func (h *SessionHandler) run(ctrl *session.Controller, req CreateSessionRequest) {
	ctx := context.Background()

	if err := ctrl.Preview(ctx, req.URL); err != nil {
		h.logger.Warn("preview failed",
			"session_id", ctrl.ID(),
			"platform", req.Platform,
			"error", err,
		)
		return
	}
	if req.PreviewOnly {
		return
	}
	if err := ctrl.Download(ctx); err != nil {
		h.logger.Warn("download failed",
			"session_id", ctrl.ID(),
			"platform", req.Platform,
			"error", err,
		)
	}
}

// Get handles GET /api/v1/sessions/{sessionID}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.manager.Get(domain.SessionID(chi.URLParam(r, "sessionID")))
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, toSessionResponse(ctrl.Session()))
}

// List handles GET /api/v1/sessions.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions := h.manager.List()
	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionResponse(s))
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// Delete handles DELETE /api/v1/sessions/{sessionID}: closes the session
// and its stream connection.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := domain.SessionID(chi.URLParam(r, "sessionID"))
	if _, ok := h.manager.Get(id); !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	h.manager.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

// Events handles GET /api/v1/sessions/{sessionID}/events: relays the
// session's progress as an SSE stream using the same wire framing the
// platform backends emit (PROGRESS_n, DONE_file, ERROR_msg, FALLBACK_url).
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.manager.Get(domain.SessionID(chi.URLParam(r, "sessionID")))
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := ctrl.Subscribe()
	defer cancel()

	// A session already finished has nothing more to say; synthesize its
	// terminal frame so late subscribers still get an answer.
	if s := ctrl.Session(); s.State.IsTerminal() {
		fmt.Fprintf(w, "data: %s\n\n", stream.EncodePayload(terminalEvent(s)))
		flusher.Flush()
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", stream.EncodePayload(ev))
			flusher.Flush()
			if ev.Terminal() {
				return
			}
		}
	}
}

// terminalEvent reconstructs the terminal frame for a finished session.
func terminalEvent(s domain.Session) domain.StreamEvent {
	switch {
	case s.State == domain.StateFailed:
		return domain.StreamEvent{Kind: domain.StreamFailed, Message: s.LastError}
	case s.FallbackURL != "":
		return domain.StreamEvent{Kind: domain.StreamFallback, FallbackURL: s.FallbackURL}
	default:
		return domain.StreamEvent{Kind: domain.StreamCompleted, FileID: s.FileID, Percent: 100}
	}
}
