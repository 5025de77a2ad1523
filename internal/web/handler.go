package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"focusbeat/internal/models"
	"focusbeat/internal/tracker"
)

// StatusSource is the live view the handler reads on every request.
// *tracker.Service satisfies it.
type StatusSource interface {
	Snapshot() tracker.Snapshot
}

// ErrorSource provides recent journal entries. *journal.Journal
// satisfies it, including as a nil pointer.
type ErrorSource interface {
	Recent(limit int) ([]models.ErrorLog, error)
}

type Handler struct {
	status  StatusSource
	journal ErrorSource
}

func NewHandler(status StatusSource, journal ErrorSource) *Handler {
	return &Handler{status: status, journal: journal}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Get("/v0/status", h.handleStatus)
	r.Get("/v0/errors", h.handleErrors)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.status.Snapshot())
}

func (h *Handler) handleErrors(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.journal.Recent(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.ErrorLog{}
	}

	respondJSON(w, entries)
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
