// Package detect finds face regions in raw frames. Two backends are
// supported: a learned model served over HTTP (precise) and an in-process
// pigo cascade (fast). Both report regions in the same source-frame pixel
// coordinate system, so downstream stages never care which one ran.
package detect

import (
	"context"
	"fmt"
	"image"
)

// Mode selects the detector backend for a single call.
type Mode string

const (
	// ModePrecise uses the learned model service. Higher accuracy,
	// higher latency, requires the service to be reachable.
	ModePrecise Mode = "precise"
	// ModeFast uses the classical pigo cascade. Lower latency and no
	// model dependency at the cost of recall.
	ModeFast Mode = "fast"
)

// ParseMode validates a mode string coming from config or a request.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePrecise, ModeFast:
		return Mode(s), nil
	case "":
		return ModePrecise, nil
	default:
		return "", fmt.Errorf("unknown detector mode %q (expected %q or %q)", s, ModePrecise, ModeFast)
	}
}

// Region is a detected face bounding box in source-frame pixel coordinates.
// Width and Height are always positive and the box lies fully inside the
// frame it was detected in.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Rect converts the region to an image.Rectangle for cropping.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// clamp restricts a raw box to the frame bounds. The second return value is
// false when nothing usable remains, in which case the detection is dropped.
func clamp(r Region, bounds image.Rectangle) (Region, bool) {
	rect := r.Rect().Intersect(bounds)
	if rect.Dx() <= 0 || rect.Dy() <= 0 {
		return Region{}, false
	}
	return Region{X: rect.Min.X, Y: rect.Min.Y, W: rect.Dx(), H: rect.Dy()}, true
}

// Error reports an unrecoverable detector backend failure. Callers treat it
// as per-frame recoverable: skip the frame and keep processing.
type Error struct {
	Backend string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s detection failed: %v", e.Backend, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Detector converts a frame into zero or more face regions. Zero detections
// returns an empty slice and a nil error. Result ordering is unspecified.
type Detector interface {
	Detect(ctx context.Context, frame image.Image, mode Mode) ([]Region, error)
}

// Selector routes Detect calls to the backend matching the requested mode.
// Either backend may be nil when not configured; requesting it yields an
// *Error so the caller can skip the frame.
type Selector struct {
	precise Detector
	fast    Detector
}

// NewSelector wires the configured backends together.
func NewSelector(precise, fast Detector) *Selector {
	return &Selector{precise: precise, fast: fast}
}

func (s *Selector) Detect(ctx context.Context, frame image.Image, mode Mode) ([]Region, error) {
	switch mode {
	case ModeFast:
		if s.fast == nil {
			return nil, &Error{Backend: "fast", Err: fmt.Errorf("backend not configured")}
		}
		return s.fast.Detect(ctx, frame, mode)
	case ModePrecise, "":
		if s.precise == nil {
			return nil, &Error{Backend: "precise", Err: fmt.Errorf("backend not configured")}
		}
		return s.precise.Detect(ctx, frame, mode)
	default:
		return nil, &Error{Backend: string(mode), Err: fmt.Errorf("unknown mode")}
	}
}
