// Package pipeline ties detection, embedding, matching and the audit log
// into the frame-to-decision flow. One frame in, one decision per detected
// face out, with every decided face logged independently.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/kozaktomas/face-gate/internal/detect"
	"github.com/kozaktomas/face-gate/internal/embed"
	"github.com/kozaktomas/face-gate/internal/eventlog"
	"github.com/kozaktomas/face-gate/internal/gallery"
	"github.com/kozaktomas/face-gate/internal/match"
)

// FaceResult is the outcome for one detected face.
type FaceResult struct {
	Region  detect.Region `json:"region"`
	Outcome match.Outcome `json:"outcome"`
	// FaceError marks a face whose descriptor could not be computed.
	// Such faces are annotated but never logged or decided.
	FaceError bool `json:"face_error,omitempty"`
}

// Result is the full outcome of processing one frame.
type Result struct {
	// Faces holds one entry per detected face, in detection order.
	Faces []FaceResult
	// Primary is the highest-confidence decided outcome, nil when no
	// face produced a decision.
	Primary *match.Outcome
	// Message is a short human-readable summary of the frame.
	Message string
	// Annotated is the input frame with boxes and labels drawn on it.
	// Populated only when requested via ProcessOptions.
	Annotated image.Image
}

// ProcessOptions tunes a single ProcessFrame call. The zero value uses the
// configured defaults.
type ProcessOptions struct {
	// Mode overrides the detector backend; empty keeps the default.
	Mode detect.Mode
	// Threshold overrides the match threshold; zero keeps the default.
	Threshold float64
	// Annotate requests the annotated copy of the frame.
	Annotate bool
}

// Pipeline runs frames through detect, embed, match and log.
type Pipeline struct {
	detector  detect.Detector
	extractor embed.Extractor
	matcher   *match.Matcher
	events    eventlog.Log
	threshold float64
}

// New wires the pipeline stages together. The threshold is the default
// match threshold applied when ProcessOptions does not override it.
func New(detector detect.Detector, extractor embed.Extractor, store gallery.Store, events eventlog.Log, threshold float64) *Pipeline {
	return &Pipeline{
		detector:  detector,
		extractor: extractor,
		matcher:   match.New(store),
		events:    events,
		threshold: threshold,
	}
}

// ProcessFrame runs one frame through the pipeline. A detector failure
// skips the whole frame and is reported as an error; a per-face embedding
// failure skips only that face. Each decided face appends exactly one
// event to the log, even when several faces appear in the same frame.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame image.Image, opts ProcessOptions) (*Result, error) {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = p.threshold
	}

	regions, err := p.detector.Detect(ctx, frame, opts.Mode)
	if err != nil {
		return nil, fmt.Errorf("could not detect faces: %w", err)
	}

	// Once faces are detected, every one of them gets decided and
	// logged. A request cancellation mid-frame must not leave a partial
	// audit trail for the frame.
	ctx = context.WithoutCancel(ctx)

	res := &Result{Faces: make([]FaceResult, 0, len(regions))}
	for _, region := range regions {
		face := p.processFace(ctx, frame, region, threshold)
		res.Faces = append(res.Faces, face)
		if face.FaceError {
			continue
		}
		if res.Primary == nil || face.Outcome.Confidence > res.Primary.Confidence {
			outcome := face.Outcome
			res.Primary = &outcome
		}
	}

	res.Message = summarize(res)
	if opts.Annotate {
		res.Annotated = Annotate(frame, res.Faces)
	}
	return res, nil
}

func (p *Pipeline) processFace(ctx context.Context, frame image.Image, region detect.Region, threshold float64) FaceResult {
	crop := cropFace(frame, region)
	descriptor, err := p.extractor.Embed(ctx, crop)
	if err != nil {
		log.Printf("could not embed face at %+v: %v", region, err)
		return faceError(region)
	}
	if descriptor == nil {
		return faceError(region)
	}

	outcome := p.matcher.Match(descriptor, threshold)
	p.record(ctx, outcome)
	return FaceResult{Region: region, Outcome: outcome}
}

// faceError is the undecided outcome for an unprocessable face. It denies
// by shape but carries no identity or confidence and is never logged.
func faceError(region detect.Region) FaceResult {
	return FaceResult{
		Region:    region,
		Outcome:   match.Outcome{Status: match.StatusDenied},
		FaceError: true,
	}
}

// record appends one event for a decided face. Logging failures must not
// turn a granted decision into an error, so they are logged and swallowed.
func (p *Pipeline) record(ctx context.Context, outcome match.Outcome) {
	ev := eventlog.Event{
		Timestamp: time.Now(),
		Status:    string(outcome.Status),
	}
	if outcome.IdentityID != match.UnknownIdentity {
		id := outcome.IdentityID
		ev.IdentityID = &id
	}
	// The outcome itself knows whether a comparison happened; the
	// gallery may have changed since the match was made.
	if outcome.Compared {
		confidence := outcome.Confidence
		ev.Confidence = &confidence
	}
	if err := p.events.Append(ctx, ev); err != nil {
		log.Printf("could not record access event: %v", err)
	}
}

// cropFace extracts the face region from the frame. SubImage keeps the
// source coordinate space, which Normalize handles transparently.
func cropFace(frame image.Image, region detect.Region) image.Image {
	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if src, ok := frame.(subImager); ok {
		return src.SubImage(region.Rect())
	}
	dst := image.NewRGBA(image.Rect(0, 0, region.W, region.H))
	for y := 0; y < region.H; y++ {
		for x := 0; x < region.W; x++ {
			dst.Set(x, y, frame.At(region.X+x, region.Y+y))
		}
	}
	return dst
}

func summarize(res *Result) string {
	if len(res.Faces) == 0 {
		return "no faces detected"
	}
	if res.Primary == nil {
		return fmt.Sprintf("%d face(s) detected, none usable", len(res.Faces))
	}
	if res.Primary.Granted() {
		return fmt.Sprintf("access granted to %s", res.Primary.IdentityID)
	}
	return "access denied"
}
