package gallery

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore keeps the gallery in a pgvector-enabled PostgreSQL
// database. Like the file store it serves matches from an in-memory
// snapshot; the database is the durable copy and the source of enrollment
// order (the pos sequence).
type PostgresStore struct {
	db  *sql.DB
	dim int

	mu   sync.Mutex
	snap atomic.Pointer[Snapshot]
}

// OpenPostgresStore connects, migrates the schema and loads the initial
// snapshot.
func OpenPostgresStore(ctx context.Context, url string, dim, maxOpen, maxIdle int) (*PostgresStore, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{db: db, dim: dim}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Reload(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS identities (
			pos BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			descriptor vector(%d) NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)
	`, s.dim)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create identities table: %w", err)
	}
	return nil
}

func (s *PostgresStore) load(ctx context.Context) (*Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, descriptor FROM identities ORDER BY pos")
	if err != nil {
		return nil, fmt.Errorf("%w: query identities: %v", ErrCorrupt, err)
	}
	defer rows.Close()

	var identities []Identity
	for rows.Next() {
		var id Identity
		var vec pgvector.Vector
		if err := rows.Scan(&id.ID, &id.DisplayName, &vec); err != nil {
			return nil, fmt.Errorf("%w: scan identity: %v", ErrCorrupt, err)
		}
		id.Descriptor = vec.Slice()
		if err := validateDescriptor(id.Descriptor, s.dim); err != nil {
			return nil, fmt.Errorf("%w: identity %q: %v", ErrCorrupt, id.ID, err)
		}
		identities = append(identities, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate identities: %v", ErrCorrupt, err)
	}

	return &Snapshot{identities: identities, dim: s.dim}, nil
}

// Snapshot returns the current gallery view.
func (s *PostgresStore) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Upsert inserts or replaces by ID. A replaced identity keeps its pos, so
// enrollment order survives re-enrollment.
func (s *PostgresStore) Upsert(ctx context.Context, id Identity) error {
	if id.ID == "" {
		return fmt.Errorf("identity ID must not be empty")
	}
	if err := validateDescriptor(id.Descriptor, s.dim); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identities (id, name, descriptor)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = $2, descriptor = $3
	`, id.ID, id.DisplayName, pgvector.NewVector(id.Descriptor))
	if err != nil {
		return fmt.Errorf("upsert identity: %w", err)
	}

	return s.reloadLocked(ctx)
}

// Delete removes an identity by ID.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM identities WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}

	return s.reloadLocked(ctx)
}

// Reload re-reads the identities table and swaps the snapshot.
func (s *PostgresStore) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked(ctx)
}

func (s *PostgresStore) reloadLocked(ctx context.Context) error {
	snap, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.snap.Store(snap)
	return nil
}

func (s *PostgresStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}
