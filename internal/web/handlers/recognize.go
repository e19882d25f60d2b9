package handlers

import (
	"image/jpeg"
	"log"
	"net/http"
	"strconv"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/detect"
	"github.com/kozaktomas/face-gate/internal/match"
	"github.com/kozaktomas/face-gate/internal/pipeline"
)

// RecognizeHandler runs frames through the recognition pipeline.
type RecognizeHandler struct {
	config   *config.Config
	pipeline *pipeline.Pipeline
}

// NewRecognizeHandler creates a recognize handler.
func NewRecognizeHandler(cfg *config.Config, p *pipeline.Pipeline) *RecognizeHandler {
	return &RecognizeHandler{config: cfg, pipeline: p}
}

// recognizeResponse is the JSON shape of a processed frame.
type recognizeResponse struct {
	Message string                `json:"message"`
	Primary *match.Outcome        `json:"primary,omitempty"`
	Faces   []pipeline.FaceResult `json:"faces"`
}

// Recognize handles POST /api/v1/recognize.
//
// Query parameters:
//   - mode: detector backend, "precise" (default) or "fast"
//   - threshold: per-request match threshold override
//   - annotated=1: respond with the annotated JPEG instead of JSON
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	mode, err := detect.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := pipeline.ProcessOptions{Mode: mode}
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil || threshold <= 0 || threshold >= 1 {
			respondError(w, http.StatusBadRequest, "threshold must be a number in (0, 1)")
			return
		}
		opts.Threshold = threshold
	}
	annotated := r.URL.Query().Get("annotated") == "1"
	opts.Annotate = annotated

	frame, err := readFrame(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	res, err := h.pipeline.ProcessFrame(r.Context(), frame, opts)
	if err != nil {
		log.Printf("recognize failed: %v", err)
		respondError(w, http.StatusBadGateway, "face detection unavailable")
		return
	}

	if annotated {
		w.Header().Set("Content-Type", "image/jpeg")
		if err := jpeg.Encode(w, res.Annotated, &jpeg.Options{Quality: 90}); err != nil {
			log.Printf("encoding annotated frame: %v", err)
		}
		return
	}

	respondJSON(w, http.StatusOK, recognizeResponse{
		Message: res.Message,
		Primary: res.Primary,
		Faces:   res.Faces,
	})
}
