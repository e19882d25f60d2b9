package detect

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"math"

	"github.com/kozaktomas/face-gate/internal/facemodel"
)

// RemoteDetector is the precise backend: detection runs on the face model
// service's learned model. Any transport or service failure surfaces as a
// *Error so the frame can be skipped.
type RemoteDetector struct {
	client *facemodel.Client
}

// NewRemoteDetector wraps a face model service client.
func NewRemoteDetector(client *facemodel.Client) *RemoteDetector {
	return &RemoteDetector{client: client}
}

func (d *RemoteDetector) Detect(ctx context.Context, frame image.Image, _ Mode) ([]Region, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: 90}); err != nil {
		return nil, &Error{Backend: "precise", Err: err}
	}

	resp, err := d.client.DetectFaces(ctx, buf.Bytes())
	if err != nil {
		return nil, &Error{Backend: "precise", Err: err}
	}

	bounds := frame.Bounds()
	regions := make([]Region, 0, len(resp.Faces))
	for _, face := range resp.Faces {
		if len(face.BBox) != 4 {
			continue
		}
		x1, y1 := face.BBox[0], face.BBox[1]
		x2, y2 := face.BBox[2], face.BBox[3]
		// The service sees the encoded JPEG with origin (0,0); shift
		// back into the source frame's coordinate space.
		raw := Region{
			X: bounds.Min.X + int(math.Floor(x1)),
			Y: bounds.Min.Y + int(math.Floor(y1)),
			W: int(math.Ceil(x2 - x1)),
			H: int(math.Ceil(y2 - y1)),
		}
		if region, ok := clamp(raw, bounds); ok {
			regions = append(regions, region)
		}
	}

	return regions, nil
}
