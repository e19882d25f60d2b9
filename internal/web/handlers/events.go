package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/kozaktomas/face-gate/internal/eventlog"
)

// defaultEventLimit caps GET /events when no limit is requested.
const defaultEventLimit = 50

// maxEventLimit is the hard ceiling for a single request.
const maxEventLimit = 1000

// EventsHandler exposes the access audit log.
type EventsHandler struct {
	events eventlog.Log
}

// NewEventsHandler creates an events handler.
func NewEventsHandler(events eventlog.Log) *EventsHandler {
	return &EventsHandler{events: events}
}

// eventView is the JSON shape of one audit entry.
type eventView struct {
	ID         int64    `json:"id"`
	Timestamp  string   `json:"timestamp"`
	IdentityID *string  `json:"identity_id"`
	Status     string   `json:"status"`
	Confidence *float64 `json:"confidence"`
}

// Recent handles GET /api/v1/events?limit=N, newest first.
func (h *EventsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}

	events, err := h.events.Recent(r.Context(), limit)
	if err != nil {
		log.Printf("reading events: %v", err)
		respondError(w, http.StatusInternalServerError, "could not read events")
		return
	}

	out := make([]eventView, 0, len(events))
	for _, ev := range events {
		out = append(out, eventView{
			ID:         ev.ID,
			Timestamp:  ev.Timestamp.Format(eventlog.TimeFormat),
			IdentityID: ev.IdentityID,
			Status:     ev.Status,
			Confidence: ev.Confidence,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"events": out,
		"count":  len(out),
	})
}
