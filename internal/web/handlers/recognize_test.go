package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-gate/internal/detect"
	"github.com/kozaktomas/face-gate/internal/gallery"
)

func TestRecognizeGranted(t *testing.T) {
	deps := newTestDeps(t,
		&stubDetector{regions: []detect.Region{{X: 10, Y: 10, W: 50, H: 50}}},
		&stubExtractor{descriptor: []float32{1, 0, 0}},
		gallery.Identity{ID: "alice", DisplayName: "Alice", Descriptor: []float32{1, 0, 0}},
	)
	h := NewRecognizeHandler(testConfig(), deps.pipeline)

	rec := httptest.NewRecorder()
	h.Recognize(rec, imageUpload(t, "/api/v1/recognize", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Message string `json:"message"`
		Primary *struct {
			IdentityID string  `json:"identity_id"`
			Status     string  `json:"status"`
			Confidence float64 `json:"confidence"`
		} `json:"primary"`
		Faces []json.RawMessage `json:"faces"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Primary == nil || resp.Primary.Status != "Granted" || resp.Primary.IdentityID != "alice" {
		t.Errorf("unexpected primary outcome: %+v", resp.Primary)
	}
	if len(resp.Faces) != 1 {
		t.Errorf("expected 1 face, got %d", len(resp.Faces))
	}
	if resp.Message != "access granted to alice" {
		t.Errorf("unexpected message: %q", resp.Message)
	}

	events, _ := deps.events.Recent(context.Background(), 10)
	if len(events) != 1 {
		t.Errorf("expected the decision to be logged, got %d events", len(events))
	}
}

func TestRecognizeInvalidMode(t *testing.T) {
	deps := newTestDeps(t, &stubDetector{}, &stubExtractor{})
	h := NewRecognizeHandler(testConfig(), deps.pipeline)

	rec := httptest.NewRecorder()
	h.Recognize(rec, imageUpload(t, "/api/v1/recognize?mode=psychic", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestRecognizeInvalidThreshold(t *testing.T) {
	deps := newTestDeps(t, &stubDetector{}, &stubExtractor{})
	h := NewRecognizeHandler(testConfig(), deps.pipeline)

	for _, raw := range []string{"abc", "0", "1", "-0.5", "1.5"} {
		rec := httptest.NewRecorder()
		h.Recognize(rec, imageUpload(t, "/api/v1/recognize?threshold="+raw, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("threshold %q: expected 400, got %d", raw, rec.Code)
		}
	}
}

func TestRecognizeDetectorUnavailable(t *testing.T) {
	deps := newTestDeps(t,
		&stubDetector{err: &detect.Error{Backend: "precise", Err: fmt.Errorf("connection refused")}},
		&stubExtractor{},
	)
	h := NewRecognizeHandler(testConfig(), deps.pipeline)

	rec := httptest.NewRecorder()
	h.Recognize(rec, imageUpload(t, "/api/v1/recognize", nil))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}

	events, _ := deps.events.Recent(context.Background(), 10)
	if len(events) != 0 {
		t.Errorf("skipped frame must not be logged, got %d events", len(events))
	}
}

func TestRecognizeInvalidBody(t *testing.T) {
	deps := newTestDeps(t, &stubDetector{}, &stubExtractor{})
	h := NewRecognizeHandler(testConfig(), deps.pipeline)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recognize", strings.NewReader("not an image"))
	rec := httptest.NewRecorder()
	h.Recognize(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestRecognizeAnnotatedResponse(t *testing.T) {
	deps := newTestDeps(t,
		&stubDetector{regions: []detect.Region{{X: 10, Y: 10, W: 50, H: 50}}},
		&stubExtractor{descriptor: []float32{1, 0, 0}},
		gallery.Identity{ID: "alice", DisplayName: "Alice", Descriptor: []float32{1, 0, 0}},
	)
	h := NewRecognizeHandler(testConfig(), deps.pipeline)

	rec := httptest.NewRecorder()
	h.Recognize(rec, imageUpload(t, "/api/v1/recognize?annotated=1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("expected a JPEG response, got %q", got)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty annotated frame")
	}
}
