package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Postgres is the service-grade durable backend. PostgreSQL handles
// concurrent inserts natively, so writes go straight through the pool.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects and ensures the access_events table exists.
func OpenPostgres(ctx context.Context, url string, maxOpen, maxIdle int) (*Postgres, error) {
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

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS access_events (
			id BIGSERIAL PRIMARY KEY,
			timestamp TEXT NOT NULL,
			identity_id TEXT,
			status TEXT NOT NULL,
			confidence DOUBLE PRECISION
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create access_events table: %w", err)
	}

	return &Postgres{db: db}, nil
}

func (p *Postgres) Append(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO access_events (timestamp, identity_id, status, confidence)
		VALUES ($1, $2, $3, $4)
	`, ev.Timestamp.Format(TimeFormat), ev.IdentityID, ev.Status, ev.Confidence)
	if err != nil {
		return fmt.Errorf("insert access event: %w", err)
	}
	return nil
}

func (p *Postgres) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, timestamp, identity_id, status, confidence
		FROM access_events
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query access events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (p *Postgres) Close() error {
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("closing event database: %w", err)
	}
	return nil
}
