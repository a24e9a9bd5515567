package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	audit "verigate/pkg/platform/audit"
)

const schema = `
CREATE TABLE IF NOT EXISTS verification_audit_events (
	id           UUID PRIMARY KEY,
	category     TEXT NOT NULL,
	action       TEXT NOT NULL,
	occurred_at  TIMESTAMPTZ NOT NULL,
	attempt_id   TEXT NOT NULL DEFAULT '',
	session_id   TEXT NOT NULL DEFAULT '',
	subject_hash TEXT NOT NULL DEFAULT '',
	channel      TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT '',
	from_cache   BOOLEAN NOT NULL DEFAULT FALSE,
	reason       TEXT NOT NULL DEFAULT '',
	request_id   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS verification_audit_events_attempt_idx
	ON verification_audit_events (attempt_id, occurred_at);
`

// Store persists audit events in PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the audit table if needed.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

// Append inserts event. Re-appending an event with the same ID is a no-op.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	id := event.ID
	if id == "" {
		id = uuid.NewString()
	}
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}
	query := `
		INSERT INTO verification_audit_events (
			id, category, action, occurred_at, attempt_id, session_id,
			subject_hash, channel, status, from_cache, reason, request_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		id, string(category), event.Action, event.Timestamp, event.AttemptID, event.SessionID,
		event.SubjectHash, event.Channel, event.Status, event.FromCache, event.Reason, event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByAttempt returns the events of one attempt in occurrence order.
func (s *Store) ListByAttempt(ctx context.Context, attemptID string) ([]audit.Event, error) {
	query := `
		SELECT id, category, action, occurred_at, attempt_id, session_id,
			subject_hash, channel, status, from_cache, reason, request_id
		FROM verification_audit_events
		WHERE attempt_id = $1
		ORDER BY occurred_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, attemptID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e        audit.Event
			category string
		)
		if err := rows.Scan(&e.ID, &category, &e.Action, &e.Timestamp, &e.AttemptID, &e.SessionID,
			&e.SubjectHash, &e.Channel, &e.Status, &e.FromCache, &e.Reason, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
