// Package match compares face descriptors against the enrolled gallery
// and produces access decisions.
package match

import (
	"math"

	"github.com/kozaktomas/face-gate/internal/gallery"
)

// Status is the access decision for one face.
type Status string

const (
	StatusGranted Status = "Granted"
	StatusDenied  Status = "Denied"
)

// UnknownIdentity is the identity reported when no gallery entry clears
// the threshold.
const UnknownIdentity = "Unknown"

// Outcome is the decision for a single descriptor. Confidence is the best
// cosine similarity found, kept even on denial so the audit log records
// how close the attempt came.
type Outcome struct {
	IdentityID string  `json:"identity_id"`
	Status     Status  `json:"status"`
	Confidence float64 `json:"confidence"`

	// Compared reports whether any gallery comparison happened. It is
	// false only when the gallery was empty at decision time, in which
	// case the audit entry must record no confidence at all.
	Compared bool `json:"-"`
}

// Granted reports whether access was granted.
func (o Outcome) Granted() bool { return o.Status == StatusGranted }

// CosineSimilarity computes the cosine similarity between two vectors,
// clamped to [-1, 1]. Mismatched lengths, empty vectors and zero-norm
// vectors all score -1 so they can never clear a threshold.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return -1
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return similarity
}

// SnapshotSource provides the current gallery snapshot. The gallery store
// satisfies this; tests can supply a fixed snapshot.
type SnapshotSource interface {
	Snapshot() *gallery.Snapshot
}

// Matcher decides access for descriptors against a gallery.
type Matcher struct {
	gallery SnapshotSource
}

// New creates a matcher reading from the given gallery.
func New(src SnapshotSource) *Matcher {
	return &Matcher{gallery: src}
}

// Match scores the descriptor against every enrolled identity and applies
// the threshold. The best-scoring identity wins; on equal scores the
// earlier-enrolled identity wins, making results reproducible. An empty
// gallery always denies with confidence 0 without comparing anything.
func (m *Matcher) Match(descriptor []float32, threshold float64) Outcome {
	snap := m.gallery.Snapshot()
	identities := snap.Identities()
	if len(identities) == 0 {
		return Outcome{IdentityID: UnknownIdentity, Status: StatusDenied, Confidence: 0.0}
	}

	bestIndex := 0
	bestScore := CosineSimilarity(descriptor, identities[0].Descriptor)
	for i := 1; i < len(identities); i++ {
		// Strict improvement only: ties keep the first-enrolled entry.
		if score := CosineSimilarity(descriptor, identities[i].Descriptor); score > bestScore {
			bestScore = score
			bestIndex = i
		}
	}

	if bestScore > threshold {
		return Outcome{
			IdentityID: identities[bestIndex].ID,
			Status:     StatusGranted,
			Confidence: bestScore,
			Compared:   true,
		}
	}
	return Outcome{
		IdentityID: UnknownIdentity,
		Status:     StatusDenied,
		Confidence: bestScore,
		Compared:   true,
	}
}
