package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/detect"
	"github.com/kozaktomas/face-gate/internal/pipeline"
)

// EnrollHandler registers new identities from reference frames.
type EnrollHandler struct {
	config   *config.Config
	enroller *pipeline.Enroller
}

// NewEnrollHandler creates an enroll handler.
func NewEnrollHandler(cfg *config.Config, e *pipeline.Enroller) *EnrollHandler {
	return &EnrollHandler{config: cfg, enroller: e}
}

// Enroll handles POST /api/v1/enroll. The frame comes as the multipart
// "image" field; "name" and optional "id" are form fields, with query
// parameter fallbacks for raw-body uploads.
func (h *EnrollHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	mode, err := detect.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	frame, err := readFrame(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = r.URL.Query().Get("name")
	}
	id := r.FormValue("id")
	if id == "" {
		id = r.URL.Query().Get("id")
	}
	if name == "" && id == "" {
		respondError(w, http.StatusBadRequest, "missing identity name")
		return
	}

	assigned, err := h.enroller.Enroll(r.Context(), frame, id, name, mode)
	if err != nil {
		var eerr *pipeline.EnrollError
		if errors.As(err, &eerr) {
			respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  eerr.Error(),
				"reason": string(eerr.Reason),
				"faces":  eerr.Faces,
			})
			return
		}
		var derr *detect.Error
		if errors.As(err, &derr) {
			log.Printf("enroll detection failed: %v", err)
			respondError(w, http.StatusBadGateway, "face detection unavailable")
			return
		}
		log.Printf("enroll failed for %q: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "enrollment failed")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"id":   assigned,
		"name": name,
	})
}
