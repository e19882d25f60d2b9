package embed

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/kozaktomas/face-gate/internal/facemodel"
)

// Remote computes descriptors on the face model service. The descriptor
// dimensionality is a property of the model and fixed at construction;
// a service response with a different dimensionality is an error because
// mixed-dimension descriptors would silently corrupt the gallery.
type Remote struct {
	client    *facemodel.Client
	dim       int
	inputSize int
}

// NewRemote creates an extractor bound to a model service and its
// descriptor dimensionality.
func NewRemote(client *facemodel.Client, dim, inputSize int) *Remote {
	return &Remote{client: client, dim: dim, inputSize: inputSize}
}

// Dim returns the descriptor dimensionality this extractor produces.
func (r *Remote) Dim() int { return r.dim }

func (r *Remote) Embed(ctx context.Context, face image.Image) ([]float32, error) {
	b := face.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, nil
	}

	normalized := Normalize(face, r.inputSize)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, normalized, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode face crop: %w", err)
	}

	descriptor, err := r.client.EmbedFace(ctx, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("embed face: %w", err)
	}
	if len(descriptor) == 0 {
		// Model saw the crop but could not produce a usable descriptor.
		return nil, nil
	}
	if len(descriptor) != r.dim {
		return nil, fmt.Errorf("model returned %d-dim descriptor, expected %d", len(descriptor), r.dim)
	}

	return descriptor, nil
}
