package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MariaDB backend for deployments that already run a MariaDB/MySQL
// instance next to the access control hardware.
type MariaDB struct {
	db *sql.DB
}

// OpenMariaDB connects using a go-sql-driver DSN, e.g.
// "facegate:secret@tcp(mariadb:3306)/facegate".
func OpenMariaDB(ctx context.Context, dsn string, maxOpen, maxIdle int) (*MariaDB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
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
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			timestamp VARCHAR(19) NOT NULL,
			identity_id TEXT,
			status VARCHAR(16) NOT NULL,
			confidence DOUBLE
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create access_events table: %w", err)
	}

	return &MariaDB{db: db}, nil
}

func (m *MariaDB) Append(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO access_events (timestamp, identity_id, status, confidence)
		VALUES (?, ?, ?, ?)
	`, ev.Timestamp.Format(TimeFormat), ev.IdentityID, ev.Status, ev.Confidence)
	if err != nil {
		return fmt.Errorf("insert access event: %w", err)
	}
	return nil
}

func (m *MariaDB) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := m.db.QueryContext(ctx, `
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

func (m *MariaDB) Close() error {
	if err := m.db.Close(); err != nil {
		return fmt.Errorf("closing event database: %w", err)
	}
	return nil
}
