package embed

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-gate/internal/facemodel"
)

func TestNormalizeSize(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		target int
	}{
		{"downscale", 320, 240, 160},
		{"upscale", 40, 60, 160},
		{"already square", 160, 160, 160},
		{"small target", 100, 100, 96},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
			got := Normalize(src, tt.target)
			if got.Bounds().Dx() != tt.target || got.Bounds().Dy() != tt.target {
				t.Errorf("Normalize produced %dx%d, want %dx%d",
					got.Bounds().Dx(), got.Bounds().Dy(), tt.target, tt.target)
			}
		})
	}
}

func TestNormalizeSubImageOrigin(t *testing.T) {
	// Crops taken with SubImage have a non-zero origin; Normalize must
	// handle them without panicking or sampling outside the crop.
	src := image.NewRGBA(image.Rect(0, 0, 200, 200))
	for y := 50; y < 150; y++ {
		for x := 50; x < 150; x++ {
			src.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	crop := src.SubImage(image.Rect(50, 50, 150, 150))

	got := Normalize(crop, 64)
	r, _, _, _ := got.At(32, 32).RGBA()
	if r == 0 {
		t.Error("normalized crop lost its content, likely sampled outside the sub-image")
	}
}

// newModelServer serves a fake /embed/face endpoint.
func newModelServer(t *testing.T, descriptor []float32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/embed/face", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"dim":       len(descriptor),
			"embedding": descriptor,
			"model":     "test-model",
		})
	})
	return httptest.NewServer(mux)
}

func testFace() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 80, 80))
}

func TestRemoteEmbed(t *testing.T) {
	descriptor := []float32{0.1, 0.2, 0.3, 0.4}
	server := newModelServer(t, descriptor)
	defer server.Close()

	extractor := NewRemote(facemodel.New(server.URL), 4, 160)
	got, err := extractor.Embed(context.Background(), testFace())
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4-dim descriptor, got %d", len(got))
	}
	for i := range descriptor {
		if got[i] != descriptor[i] {
			t.Errorf("descriptor[%d] = %v, want %v", i, got[i], descriptor[i])
		}
	}
}

func TestRemoteEmbedUnusableCrop(t *testing.T) {
	server := newModelServer(t, []float32{})
	defer server.Close()

	extractor := NewRemote(facemodel.New(server.URL), 4, 160)
	got, err := extractor.Embed(context.Background(), testFace())
	if err != nil {
		t.Fatalf("unusable crop must not be an error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil descriptor for unusable crop, got %v", got)
	}
}

func TestRemoteEmbedDimMismatch(t *testing.T) {
	server := newModelServer(t, []float32{0.1, 0.2})
	defer server.Close()

	extractor := NewRemote(facemodel.New(server.URL), 4, 160)
	if _, err := extractor.Embed(context.Background(), testFace()); err == nil {
		t.Fatal("expected error for descriptor dimensionality mismatch")
	}
}

func TestRemoteEmbedDegenerateInput(t *testing.T) {
	server := newModelServer(t, []float32{0.1, 0.2, 0.3, 0.4})
	defer server.Close()

	extractor := NewRemote(facemodel.New(server.URL), 4, 160)
	empty := image.NewRGBA(image.Rect(0, 0, 0, 0))
	got, err := extractor.Embed(context.Background(), empty)
	if err != nil {
		t.Fatalf("degenerate input must not be an error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil descriptor for degenerate input, got %v", got)
	}
}

func TestRemoteEmbedServiceDown(t *testing.T) {
	server := newModelServer(t, []float32{0.1})
	server.Close() // refuse connections

	extractor := NewRemote(facemodel.New(server.URL), 1, 160)
	if _, err := extractor.Embed(context.Background(), testFace()); err == nil {
		t.Fatal("expected error when the model service is unreachable")
	}
}
