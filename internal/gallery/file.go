package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/renameio"
)

// LoadPolicy decides what a corrupt backing file means at open time.
type LoadPolicy int

const (
	// Strict fails the open. Used by one-shot CLI commands where a
	// corrupt gallery should stop the run.
	Strict LoadPolicy = iota
	// Lenient degrades to an empty gallery so a long-running service
	// keeps answering instead of crashing. The corruption is still
	// reported through the returned warning.
	Lenient
)

// record is the persisted form of one identity, keyed by ID in the file.
// Pos is the enrollment position; the matcher's tie-breaking depends on
// enrollment order, so it must survive the round trip through a JSON
// object whose keys carry no order.
type record struct {
	Name       string    `json:"name"`
	Descriptor []float32 `json:"descriptor"`
	Pos        int       `json:"pos"`
}

// FileStore persists the gallery as a single JSON object keyed by identity
// ID. Saves are write-then-rename, so readers of the file never observe a
// partial gallery.
type FileStore struct {
	path string
	dim  int

	mu   sync.Mutex // serializes mutations; snapshot reads are lock-free
	snap atomic.Pointer[Snapshot]
}

// OpenFileStore loads the gallery file. A missing file yields an empty
// gallery. A corrupt file fails a Strict open; a Lenient open logs the
// corruption and starts with an empty gallery so the service keeps running.
func OpenFileStore(path string, dim int, policy LoadPolicy) (*FileStore, error) {
	s := &FileStore{path: path, dim: dim}

	snap, err := s.load()
	if err != nil {
		if policy == Strict {
			return nil, err
		}
		log.Printf("WARNING: %v, starting with empty gallery", err)
		s.snap.Store(&Snapshot{dim: dim})
		return s, nil
	}

	s.snap.Store(snap)
	return s, nil
}

func (s *FileStore) load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &Snapshot{dim: s.dim}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrCorrupt, s.path, err)
	}

	var records map[string]record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrCorrupt, s.path, err)
	}

	type entry struct {
		id  string
		rec record
	}
	entries := make([]entry, 0, len(records))
	for id, rec := range records {
		if err := validateDescriptor(rec.Descriptor, s.dim); err != nil {
			return nil, fmt.Errorf("%w: identity %q: %v", ErrCorrupt, id, err)
		}
		entries = append(entries, entry{id: id, rec: rec})
	}

	// Enrollment order comes from the persisted positions. Hand-edited
	// files with duplicate or missing positions fall back to ID order
	// within the same position, which is at least deterministic.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].rec.Pos != entries[j].rec.Pos {
			return entries[i].rec.Pos < entries[j].rec.Pos
		}
		return entries[i].id < entries[j].id
	})

	identities := make([]Identity, 0, len(entries))
	for _, e := range entries {
		identities = append(identities, Identity{
			ID:          e.id,
			DisplayName: e.rec.Name,
			Descriptor:  e.rec.Descriptor,
		})
	}

	return &Snapshot{identities: identities, dim: s.dim}, nil
}

func (s *FileStore) save(snap *Snapshot) error {
	records := make(map[string]record, len(snap.identities))
	for pos, id := range snap.identities {
		records[id.ID] = record{Name: id.DisplayName, Descriptor: id.Descriptor, Pos: pos}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal gallery: %w", err)
	}

	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write gallery file: %w", err)
	}
	return nil
}

// Snapshot returns the current gallery view without taking the write lock.
func (s *FileStore) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Upsert inserts or replaces by ID. The identity keeps its original
// position when replaced and appends when new, so matcher tie-breaking by
// enrollment order stays stable.
func (s *FileStore) Upsert(ctx context.Context, id Identity) error {
	if id.ID == "" {
		return fmt.Errorf("identity ID must not be empty")
	}
	if err := validateDescriptor(id.Descriptor, s.dim); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.snap.Load()
	identities := make([]Identity, len(old.identities), len(old.identities)+1)
	copy(identities, old.identities)

	replaced := false
	for i := range identities {
		if identities[i].ID == id.ID {
			identities[i] = id
			replaced = true
			break
		}
	}
	if !replaced {
		identities = append(identities, id)
	}

	next := &Snapshot{identities: identities, dim: s.dim}
	if err := s.save(next); err != nil {
		return err
	}
	s.snap.Store(next)
	return nil
}

// Delete removes an identity by ID.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.snap.Load()
	identities := make([]Identity, 0, len(old.identities))
	for _, existing := range old.identities {
		if existing.ID != id {
			identities = append(identities, existing)
		}
	}
	if len(identities) == len(old.identities) {
		return nil
	}

	next := &Snapshot{identities: identities, dim: s.dim}
	if err := s.save(next); err != nil {
		return err
	}
	s.snap.Store(next)
	return nil
}

// Reload re-reads the gallery file and swaps the snapshot.
func (s *FileStore) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return err
	}
	s.snap.Store(snap)
	return nil
}

func (s *FileStore) Close() error { return nil }
