package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"verigate/internal/verification/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS verified_sessions (
	subject_key TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	status      TEXT NOT NULL,
	verified_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore persists entries in PostgreSQL. The subject key is the primary
// key, so Put is an upsert and at most one row exists per subject.
type PostgresStore struct {
	db   *sql.DB
	opts options
}

func NewPostgres(db *sql.DB, opts ...Option) *PostgresStore {
	return &PostgresStore{db: db, opts: newOptions(opts)}
}

// EnsureSchema creates the backing table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create verified_sessions table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, subjectKey string) (*models.VerifiedSession, error) {
	var (
		entry  models.VerifiedSession
		status string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT subject_key, session_id, status, verified_at FROM verified_sessions WHERE subject_key = $1`,
		subjectKey,
	).Scan(&entry.SubjectKey, &entry.SessionID, &status, &entry.VerifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		s.opts.metrics.IncCacheLookup("postgres", "miss")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find verified session: %w", err)
	}
	entry.Status = models.Status(status)

	if entry.Expired(s.opts.now(), s.opts.ttl) {
		// Only delete the row we read; a concurrent Put may have replaced it.
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM verified_sessions WHERE subject_key = $1 AND verified_at = $2`,
			subjectKey, entry.VerifiedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("purge expired verified session: %w", err)
		}
		s.opts.metrics.IncCacheLookup("postgres", "expired")
		return nil, nil
	}

	s.opts.metrics.IncCacheLookup("postgres", "hit")
	return &entry, nil
}

func (s *PostgresStore) Put(ctx context.Context, subjectKey, sessionID string, status models.Status) error {
	if err := validatePut(subjectKey, sessionID, status); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verified_sessions (subject_key, session_id, status, verified_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject_key) DO UPDATE
		SET session_id = EXCLUDED.session_id,
			status = EXCLUDED.status,
			verified_at = EXCLUDED.verified_at`,
		subjectKey, sessionID, string(status), s.opts.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save verified session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Evict(ctx context.Context, subjectKey string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM verified_sessions WHERE subject_key = $1`, subjectKey); err != nil {
		return fmt.Errorf("evict verified session: %w", err)
	}
	return nil
}
