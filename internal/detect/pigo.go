package detect

import (
	"context"
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
)

// FastOptions tunes the pigo cascade. Zero values fall back to usable
// defaults for webcam-scale frames.
type FastOptions struct {
	MinFaceSize      int     // smallest face edge in pixels
	ShiftFactor      float64 // detection window shift per step
	ScaleFactor      float64 // detection window growth per step
	IoUThreshold     float64 // cluster overlap threshold
	QualityThreshold float64 // minimum cascade score to keep a detection
}

func (o FastOptions) withDefaults() FastOptions {
	if o.MinFaceSize <= 0 {
		o.MinFaceSize = 60
	}
	if o.ShiftFactor <= 0 {
		o.ShiftFactor = 0.1
	}
	if o.ScaleFactor <= 0 {
		o.ScaleFactor = 1.1
	}
	if o.IoUThreshold <= 0 {
		o.IoUThreshold = 0.2
	}
	if o.QualityThreshold <= 0 {
		o.QualityThreshold = 5.0
	}
	return o
}

// FastDetector is the classical backend: a pigo pixel-intensity-comparison
// cascade running in-process. No GPU, no model service.
type FastDetector struct {
	classifier *pigo.Pigo
	opts       FastOptions
}

// NewFastDetector unpacks the binary cascade file once at startup. The
// returned detector is safe for concurrent use.
func NewFastDetector(cascadePath string, opts FastOptions) (*FastDetector, error) {
	data, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("read cascade file: %w", err)
	}

	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade: %w", err)
	}

	return &FastDetector{classifier: classifier, opts: opts.withDefaults()}, nil
}

func (d *FastDetector) Detect(ctx context.Context, frame image.Image, _ Mode) ([]Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Backend: "fast", Err: err}
	}

	src := pigo.ImgToNRGBA(frame)
	pixels := pigo.RgbToGrayscale(src)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()
	if cols == 0 || rows == 0 {
		return nil, nil
	}

	params := pigo.CascadeParams{
		MinSize:     d.opts.MinFaceSize,
		MaxSize:     min(cols, rows),
		ShiftFactor: d.opts.ShiftFactor,
		ScaleFactor: d.opts.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.opts.IoUThreshold)

	bounds := frame.Bounds()
	regions := make([]Region, 0, len(dets))
	for _, det := range dets {
		if float64(det.Q) < d.opts.QualityThreshold {
			continue
		}
		// pigo reports center plus scale; convert to a top-left box.
		raw := Region{
			X: bounds.Min.X + det.Col - det.Scale/2,
			Y: bounds.Min.Y + det.Row - det.Scale/2,
			W: det.Scale,
			H: det.Scale,
		}
		if region, ok := clamp(raw, bounds); ok {
			regions = append(regions, region)
		}
	}

	return regions, nil
}
