package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"focusbeat/internal/models"
	"focusbeat/internal/tracker"
)

type stubStatus struct {
	snap tracker.Snapshot
}

func (s stubStatus) Snapshot() tracker.Snapshot { return s.snap }

type stubErrors struct {
	entries []models.ErrorLog
}

func (s stubErrors) Recent(limit int) ([]models.ErrorLog, error) {
	if limit < len(s.entries) {
		return s.entries[:limit], nil
	}
	return s.entries, nil
}

func newTestRouter(status StatusSource, errs ErrorSource) http.Handler {
	router := chi.NewRouter()
	NewHandler(status, errs).Routes(router)
	return router
}

func TestHandleHealth(t *testing.T) {
	router := newTestRouter(stubStatus{}, stubErrors{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestHandleStatus(t *testing.T) {
	snap := tracker.Snapshot{
		RunID:          "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		Backend:        "hyprland",
		EventsSeen:     12,
		HeartbeatsSent: 4,
		LastEntity:     "kitty",
	}
	router := newTestRouter(stubStatus{snap: snap}, stubErrors{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v0/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v0/status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got tracker.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.RunID != snap.RunID || got.Backend != snap.Backend || got.HeartbeatsSent != snap.HeartbeatsSent {
		t.Errorf("snapshot = %+v, want %+v", got, snap)
	}
}

func TestHandleErrors(t *testing.T) {
	errs := stubErrors{entries: []models.ErrorLog{
		{Component: models.ComponentDispatch, Message: "10 consecutive wakatime-cli failures"},
		{Component: models.ComponentIdle, Message: "idle provider unavailable"},
		{Component: models.ComponentSource, Message: "socket closed"},
	}}
	router := newTestRouter(stubStatus{}, errs)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v0/errors?limit=2", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v0/errors = %d, want %d", rec.Code, http.StatusOK)
	}
	var got []models.ErrorLog
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len(entries) = %d, want 2", len(got))
	}
}

func TestHandleErrorsBadLimit(t *testing.T) {
	router := newTestRouter(stubStatus{}, stubErrors{})

	for _, limit := range []string{"0", "-3", "abc"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v0/errors?limit="+limit, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("GET /v0/errors?limit=%s = %d, want %d", limit, rec.Code, http.StatusBadRequest)
		}
	}
}
