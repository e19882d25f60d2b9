package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is the embedded durable backend. Writes go through a single
// writer goroutine; reads use their own connections, which WAL mode
// allows to proceed concurrently with writes.
type SQLite struct {
	db     *sql.DB
	writer *writeWorker
}

// OpenSQLite opens or creates the event database file and its schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir event log dir: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(4)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS access_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			identity_id TEXT,
			status TEXT NOT NULL,
			confidence REAL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create access_events table: %w", err)
	}

	return &SQLite{db: db, writer: newWriteWorker(db)}, nil
}

func (s *SQLite) Append(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	return s.writer.do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO access_events (timestamp, identity_id, status, confidence)
			VALUES (?, ?, ?, ?)
		`, ev.Timestamp.Format(TimeFormat), ev.IdentityID, ev.Status, ev.Confidence)
		if err != nil {
			return fmt.Errorf("insert access event: %w", err)
		}
		return nil
	})
}

func (s *SQLite) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, identity_id, status, confidence
		FROM access_events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query access events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *SQLite) Close() error {
	s.writer.close()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing event database: %w", err)
	}
	return nil
}

// rowScanner covers *sql.Rows for the shared scan helper.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEvents(rows rowScanner) ([]Event, error) {
	events := []Event{}
	for rows.Next() {
		var ev Event
		var ts string
		if err := rows.Scan(&ev.ID, &ts, &ev.IdentityID, &ev.Status, &ev.Confidence); err != nil {
			return nil, fmt.Errorf("scan access event: %w", err)
		}
		parsed, err := time.ParseInLocation(TimeFormat, ts, time.Local)
		if err != nil {
			return nil, fmt.Errorf("parse event timestamp %q: %w", ts, err)
		}
		ev.Timestamp = parsed
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access events: %w", err)
	}
	return events, nil
}
