// Package eventlog is the append-only audit log of access decisions.
// Backends share one contract: an Append that returned is visible to any
// subsequent Recent call, from any goroutine, and Recent never waits for
// in-flight appends to drain.
package eventlog

import (
	"context"
	"sync"
	"time"
)

// TimeFormat is the timestamp layout used by the SQL backends.
const TimeFormat = "2006-01-02 15:04:05"

// Event is one recorded access decision. IdentityID is nil for denials
// where nobody matched; Confidence is nil when no comparison happened.
// Events are immutable once appended.
type Event struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	IdentityID *string   `json:"identity_id"`
	Status     string    `json:"status"`
	Confidence *float64  `json:"confidence"`
}

// Log is the event log contract shared by every backend.
type Log interface {
	// Append records one event. The implementation assigns the sequence
	// ID and fills a zero Timestamp with the current time.
	Append(ctx context.Context, ev Event) error
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]Event, error)
	// Close flushes and releases backing resources.
	Close() error
}

// Memory is the in-process backend: no durability, same visibility
// guarantees. With maxEvents > 0 it keeps only the newest maxEvents
// entries (ring-buffer retention); with 0 it grows unbounded.
type Memory struct {
	mu        sync.RWMutex
	events    []Event
	nextID    int64
	maxEvents int
}

// NewMemory creates an in-memory event log. maxEvents 0 disables eviction.
func NewMemory(maxEvents int) *Memory {
	return &Memory{nextID: 1, maxEvents: maxEvents}
}

func (m *Memory) Append(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev.ID = m.nextID
	m.nextID++
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	m.events = append(m.events, ev)
	if m.maxEvents > 0 && len(m.events) > m.maxEvents {
		// Copy instead of reslicing so evicted entries get collected.
		kept := make([]Event, m.maxEvents)
		copy(kept, m.events[len(m.events)-m.maxEvents:])
		m.events = kept
	}
	return nil
}

func (m *Memory) Recent(_ context.Context, limit int) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.events) {
		limit = len(m.events)
	}

	out := make([]Event, limit)
	for i := range limit {
		out[i] = m.events[len(m.events)-1-i]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
