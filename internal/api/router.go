package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vidgrab/vidgrab/internal/api/handler"
	mw "github.com/vidgrab/vidgrab/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	sessionHandler *handler.SessionHandler,
	historyHandler *handler.HistoryHandler,
	healthHandler *handler.HealthHandler,
	apiKey string,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	// Long timeout: the session event relay stays open for whole downloads.
	r.Use(middleware.Timeout(30 * time.Minute))
	r.Use(mw.CORS)

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))

		r.Post("/sessions", sessionHandler.Create)
		r.Get("/sessions", sessionHandler.List)
		r.Get("/sessions/{sessionID}", sessionHandler.Get)
		r.Delete("/sessions/{sessionID}", sessionHandler.Delete)
		r.Get("/sessions/{sessionID}/events", sessionHandler.Events)

		r.Get("/history", historyHandler.List)
		r.Delete("/history", historyHandler.Clear)
	})

	return r
}
