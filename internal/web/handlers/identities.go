package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-gate/internal/gallery"
)

// IdentitiesHandler exposes the enrolled gallery.
type IdentitiesHandler struct {
	gallery gallery.Store
}

// NewIdentitiesHandler creates an identities handler.
func NewIdentitiesHandler(store gallery.Store) *IdentitiesHandler {
	return &IdentitiesHandler{gallery: store}
}

// identitySummary is the public view of an identity. Descriptors never
// leave the service.
type identitySummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// List handles GET /api/v1/identities.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	identities := h.gallery.Snapshot().Identities()

	out := make([]identitySummary, 0, len(identities))
	for _, id := range identities {
		out = append(out, identitySummary{ID: id.ID, Name: id.DisplayName})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"identities": out,
		"count":      len(out),
	})
}

// Delete handles DELETE /api/v1/identities/{id}.
func (h *IdentitiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing identity id")
		return
	}

	if err := h.gallery.Delete(r.Context(), id); err != nil {
		log.Printf("deleting identity %s: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "could not delete identity")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}
