package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"resights/internal/audit"
)

const schema = `
CREATE TABLE IF NOT EXISTS registry_audit_events (
	id          UUID PRIMARY KEY,
	timestamp   TIMESTAMPTZ NOT NULL,
	request_id  TEXT NOT NULL DEFAULT '',
	operation   TEXT NOT NULL,
	bfe_number  BIGINT NOT NULL DEFAULT 0,
	target      TEXT NOT NULL DEFAULT '',
	outcome     TEXT NOT NULL,
	status      INTEGER NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS registry_audit_events_timestamp_idx ON registry_audit_events (timestamp DESC);
`

// Store implements audit.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store. Call Migrate before first use.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	return db, nil
}

// Migrate creates the audit table when it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

// Append inserts an event. Duplicate ids are ignored.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO registry_audit_events (
			id, timestamp, request_id, operation, bfe_number,
			target, outcome, status, duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		event.RequestID,
		string(event.Operation),
		event.BFENumber,
		event.Target,
		event.Outcome,
		event.Status,
		event.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, timestamp, request_id, operation, bfe_number,
			   target, outcome, status, duration_ms
		FROM registry_audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e          audit.Event
			operation  string
			durationMS int64
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.RequestID, &operation, &e.BFENumber,
			&e.Target, &e.Outcome, &e.Status, &durationMS); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Operation = audit.Operation(operation)
		e.Duration = time.Duration(durationMS) * time.Millisecond
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
