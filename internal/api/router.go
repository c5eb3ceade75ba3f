package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc Service, authEnabled bool, token string, sseHandler http.Handler, logger *slog.Logger) chi.Router {
	h := NewHandler(svc, logger)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/runs", h.ListRuns)
	r.Get("/published", h.ListPublished)
	r.Post("/sync", h.Sync)
	r.Get("/preview/*", h.Preview)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
