package handlers

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/detect"
	"github.com/kozaktomas/face-gate/internal/eventlog"
	"github.com/kozaktomas/face-gate/internal/gallery"
	"github.com/kozaktomas/face-gate/internal/pipeline"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Recognition.Threshold = 0.5
	cfg.Recognition.DescriptorDim = 3
	return cfg
}

type stubDetector struct {
	regions []detect.Region
	err     error
}

func (d *stubDetector) Detect(_ context.Context, _ image.Image, _ detect.Mode) ([]detect.Region, error) {
	return d.regions, d.err
}

// stubExtractor returns the same descriptor for every face crop.
type stubExtractor struct {
	descriptor []float32
	err        error
}

func (e *stubExtractor) Embed(_ context.Context, _ image.Image) ([]float32, error) {
	return e.descriptor, e.err
}

// testDeps bundles everything a handler test needs to inspect afterwards.
type testDeps struct {
	gallery  gallery.Store
	events   eventlog.Log
	pipeline *pipeline.Pipeline
	enroller *pipeline.Enroller
}

func newTestDeps(t *testing.T, detector detect.Detector, extractor *stubExtractor, identities ...gallery.Identity) *testDeps {
	t.Helper()
	store, err := gallery.OpenFileStore(filepath.Join(t.TempDir(), "gallery.json"), 3, gallery.Strict)
	if err != nil {
		t.Fatalf("could not open gallery: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	for _, id := range identities {
		if err := store.Upsert(context.Background(), id); err != nil {
			t.Fatalf("could not enroll %q: %v", id.ID, err)
		}
	}
	events := eventlog.NewMemory(0)
	return &testDeps{
		gallery:  store,
		events:   events,
		pipeline: pipeline.New(detector, extractor, store, events, 0.5),
		enroller: pipeline.NewEnroller(detector, extractor, store),
	}
}

// imageUpload builds a multipart request with a PNG frame in the "image"
// field plus any extra form fields.
func imageUpload(t *testing.T, path string, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "frame.png")
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(part, image.NewRGBA(image.Rect(0, 0, 200, 200))); err != nil {
		t.Fatal(err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatal(err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
