package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/wikisync/internal/apperr"
	"github.com/starford/wikisync/internal/ledger"
	"github.com/starford/wikisync/internal/runner"
)

// Handler holds API route handlers.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(svc Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// notePath extracts the vault-relative note path from the URL wildcard.
// Supports encoded slashes (e.g. notes%2Ftrip.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListRuns handles GET /api/runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.Runs(limit)
	if err != nil {
		h.fail(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []ledger.RunRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// ListPublished handles GET /api/published. With ?slug= it reports which
// notes own that target file instead.
func (h *Handler) ListPublished(w http.ResponseWriter, r *http.Request) {
	if slug := r.URL.Query().Get("slug"); slug != "" {
		h.slugOwners(w, slug)
		return
	}
	notes, err := h.svc.Published()
	if err != nil {
		h.fail(w, "list published", err)
		return
	}
	if notes == nil {
		notes = []ledger.PublishedRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes, "total": len(notes)})
}

func (h *Handler) slugOwners(w http.ResponseWriter, slug string) {
	owners, err := h.svc.SlugOwners(slug)
	if err != nil {
		h.fail(w, "slug owners", err)
		return
	}
	if owners == nil {
		owners = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"slug":      slug,
		"owners":    owners,
		"collision": len(owners) > 1,
	})
}

// Sync handles POST /api/sync. The run completes before the response is
// written and is not cancelled when the client disconnects.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Trigger(context.WithoutCancel(r.Context()), runner.TriggerAPI)
	if err != nil {
		h.fail(w, "sync", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  res.RunID,
		"summary": runner.Summary(res.RunID, runner.TriggerAPI, res.Report),
		"report":  res.Report,
	})
}

// Preview handles GET /api/preview/*.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	p, err := h.svc.Preview(path)
	if err != nil {
		h.fail(w, "preview", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// fail maps domain errors to status codes.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, errorBody("sync already running"))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrPathEscape):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid path"))
	default:
		h.logger.Error("api: "+op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
	}
}
