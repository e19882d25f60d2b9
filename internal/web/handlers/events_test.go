package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/face-gate/internal/eventlog"
)

func seedEvents(t *testing.T, log eventlog.Log, n int) {
	t.Helper()
	id := "alice"
	confidence := 0.9
	for i := 0; i < n; i++ {
		err := log.Append(context.Background(), eventlog.Event{
			Timestamp:  time.Now(),
			IdentityID: &id,
			Status:     "Granted",
			Confidence: &confidence,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestEventsRecent(t *testing.T) {
	events := eventlog.NewMemory(0)
	seedEvents(t, events, 3)
	h := NewEventsHandler(events)

	rec := httptest.NewRecorder()
	h.Recent(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Events []struct {
			ID         int64    `json:"id"`
			Timestamp  string   `json:"timestamp"`
			IdentityID *string  `json:"identity_id"`
			Status     string   `json:"status"`
			Confidence *float64 `json:"confidence"`
		} `json:"events"`
		Count int `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 3 {
		t.Fatalf("expected 3 events, got %d", resp.Count)
	}
	// Newest first.
	if resp.Events[0].ID <= resp.Events[1].ID {
		t.Errorf("events not newest-first: %+v", resp.Events)
	}
	if _, err := time.Parse(eventlog.TimeFormat, resp.Events[0].Timestamp); err != nil {
		t.Errorf("unexpected timestamp format %q: %v", resp.Events[0].Timestamp, err)
	}
}

func TestEventsLimit(t *testing.T) {
	events := eventlog.NewMemory(0)
	seedEvents(t, events, 5)
	h := NewEventsHandler(events)

	rec := httptest.NewRecorder()
	h.Recent(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events?limit=2", nil))

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 {
		t.Errorf("expected 2 events, got %d", resp.Count)
	}
}

func TestEventsInvalidLimit(t *testing.T) {
	h := NewEventsHandler(eventlog.NewMemory(0))

	for _, raw := range []string{"abc", "0", "-5"} {
		rec := httptest.NewRecorder()
		h.Recent(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events?limit="+raw, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit %q: expected 400, got %d", raw, rec.Code)
		}
	}
}

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("unexpected content type %q", got)
	}
}
