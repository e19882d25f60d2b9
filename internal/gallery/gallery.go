// Package gallery holds the enrolled identities and their descriptors.
// Matching reads an immutable snapshot that is swapped atomically on every
// mutation, so the hot comparison loop never observes a half-updated
// gallery.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrCorrupt marks an unreadable or malformed backing store. One-shot CLI
// contexts treat it as fatal; the long-running service degrades to an empty
// gallery instead.
var ErrCorrupt = errors.New("gallery store corrupt")

// Identity is one enrolled person. Records are never mutated in place,
// only replaced via Upsert or removed via Delete.
type Identity struct {
	ID          string
	DisplayName string
	Descriptor  []float32
}

// Snapshot is an immutable view of the gallery at one point in time.
// Identity order is the enrollment order, which the matcher relies on for
// deterministic tie-breaking.
type Snapshot struct {
	identities []Identity
	dim        int
}

// Identities returns the snapshot contents in enrollment order. Callers
// must not modify the returned slice.
func (s *Snapshot) Identities() []Identity {
	if s == nil {
		return nil
	}
	return s.identities
}

// Len returns the number of enrolled identities.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.identities)
}

// Dim returns the descriptor dimensionality of the gallery.
func (s *Snapshot) Dim() int {
	if s == nil {
		return 0
	}
	return s.dim
}

// Store is the enrolled-identity store. Implementations keep the current
// snapshot behind an atomic pointer; Snapshot is wait-free with respect to
// concurrent mutations.
type Store interface {
	// Snapshot returns the current immutable gallery view.
	Snapshot() *Snapshot
	// Upsert inserts or replaces an identity by ID and persists the
	// gallery before the new snapshot becomes visible.
	Upsert(ctx context.Context, id Identity) error
	// Delete removes an identity by ID. Deleting a missing ID is a no-op.
	Delete(ctx context.Context, id string) error
	// Reload re-reads the backing store, replacing the snapshot.
	Reload(ctx context.Context) error
	// Close releases backing resources.
	Close() error
}

// validateDescriptor enforces the fixed dimensionality invariant shared by
// every store backend.
func validateDescriptor(descriptor []float32, dim int) error {
	if len(descriptor) != dim {
		return fmt.Errorf("descriptor has %d components, store requires %d", len(descriptor), dim)
	}
	return nil
}

// SlugID derives a stable identity ID from a display name: diacritics
// removed, lowercased, spaces collapsed to dashes. Returns "" when nothing
// usable remains, in which case the caller generates an ID.
func SlugID(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, _ := transform.String(t, name)
	ascii = strings.ToLower(strings.TrimSpace(ascii))

	var b strings.Builder
	lastDash := true
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
