// Package embed turns cropped face images into fixed-length descriptors.
package embed

import (
	"context"
	"image"

	"golang.org/x/image/draw"
)

// Extractor computes a face descriptor from a cropped face image. A nil
// descriptor with a nil error means the crop was unusable (degenerate
// input); the caller must not treat that as a backend failure.
type Extractor interface {
	Embed(ctx context.Context, face image.Image) ([]float32, error)
}

// Normalize resizes a face crop to the model input size (size x size)
// with bilinear interpolation. The model expects a square input, so the
// crop's aspect ratio is not preserved, matching how the original frames
// fed the embedding model.
func Normalize(face image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), face, face.Bounds(), draw.Over, nil)
	return dst
}
