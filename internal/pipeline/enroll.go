package pipeline

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-gate/internal/detect"
	"github.com/kozaktomas/face-gate/internal/gallery"
)

// EnrollReason categorizes why an enrollment was rejected.
type EnrollReason string

const (
	// FaceCountMismatch means the frame did not contain exactly one face.
	FaceCountMismatch EnrollReason = "face_count_mismatch"
	// ExtractionFailed means the single face could not be embedded.
	ExtractionFailed EnrollReason = "extraction_failed"
)

// EnrollError rejects an enrollment frame. The gallery is left untouched.
type EnrollError struct {
	Reason EnrollReason
	Faces  int
}

func (e *EnrollError) Error() string {
	switch e.Reason {
	case FaceCountMismatch:
		return fmt.Sprintf("enrollment requires exactly one face, found %d", e.Faces)
	case ExtractionFailed:
		return "could not compute a descriptor for the face"
	default:
		return fmt.Sprintf("enrollment rejected: %s", e.Reason)
	}
}

// Enroller adds identities to the gallery from reference frames.
type Enroller struct {
	detector  detect.Detector
	extractor faceExtractor
	gallery   gallery.Store

	// ids serializes concurrent enrollments of the same identity so two
	// racing frames cannot interleave a detect-then-upsert sequence.
	ids sync.Map // id -> *sync.Mutex
}

// faceExtractor is the embed.Extractor contract, redeclared locally to
// keep the enroller testable with the same fakes as the pipeline.
type faceExtractor interface {
	Embed(ctx context.Context, face image.Image) ([]float32, error)
}

// NewEnroller wires the enrollment flow.
func NewEnroller(detector detect.Detector, extractor faceExtractor, store gallery.Store) *Enroller {
	return &Enroller{detector: detector, extractor: extractor, gallery: store}
}

// Enroll registers the single face in the frame under the given identity.
// An empty id is derived from the name, falling back to a random UUID when
// the name yields nothing usable. Enrolling an existing id replaces its
// descriptor. The assigned id is returned.
func (e *Enroller) Enroll(ctx context.Context, frame image.Image, id, name string, mode detect.Mode) (string, error) {
	if strings.TrimSpace(name) == "" && strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("enrollment requires an identity name or id")
	}
	if id == "" {
		id = gallery.SlugID(name)
	}
	if id == "" {
		id = uuid.NewString()
	}

	unlock := e.lock(id)
	defer unlock()

	regions, err := e.detector.Detect(ctx, frame, mode)
	if err != nil {
		return "", fmt.Errorf("could not detect faces: %w", err)
	}
	if len(regions) != 1 {
		return "", &EnrollError{Reason: FaceCountMismatch, Faces: len(regions)}
	}

	descriptor, err := e.extractor.Embed(ctx, cropFace(frame, regions[0]))
	if err != nil {
		return "", fmt.Errorf("could not embed face: %w", err)
	}
	if descriptor == nil {
		return "", &EnrollError{Reason: ExtractionFailed, Faces: 1}
	}

	if name == "" {
		name = id
	}
	identity := gallery.Identity{ID: id, DisplayName: name, Descriptor: descriptor}
	if err := e.gallery.Upsert(ctx, identity); err != nil {
		return "", fmt.Errorf("could not store identity %q: %w", id, err)
	}
	return id, nil
}

func (e *Enroller) lock(id string) func() {
	mu, _ := e.ids.LoadOrStore(id, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
