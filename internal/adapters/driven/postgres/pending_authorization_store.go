package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driven"
)

// Ensure PendingAuthorizationStore implements the interface.
var _ driven.PendingAuthorizationStore = (*PendingAuthorizationStore)(nil)

// PendingAuthorizationStore implements driven.PendingAuthorizationStore using PostgreSQL.
type PendingAuthorizationStore struct {
	db *DB
}

// NewPendingAuthorizationStore creates a new PostgreSQL-backed pending authorization store.
func NewPendingAuthorizationStore(db *DB) *PendingAuthorizationStore {
	return &PendingAuthorizationStore{db: db}
}

// Save replaces any pending authorization for the same context key with p.
// The per-key unique constraint keeps concurrent saves down to one row.
func (s *PendingAuthorizationStore) Save(ctx context.Context, p *domain.PendingAuthorization) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_authorizations (state, user_id, chat_id, thread_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ON CONSTRAINT pending_authorizations_context_key DO UPDATE SET
			state = EXCLUDED.state,
			created_at = EXCLUDED.created_at
	`, p.State, p.Key.UserID, p.Key.ChatID, nullInt64(p.Key.ThreadID), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("save pending authorization: %w", err)
	}
	return nil
}

// Get retrieves a pending authorization by state.
func (s *PendingAuthorizationStore) Get(ctx context.Context, state string) (*domain.PendingAuthorization, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT state, user_id, chat_id, thread_id, created_at
		FROM pending_authorizations
		WHERE state = $1
	`, state)

	p, err := scanPending(row)
	if err != nil {
		return nil, fmt.Errorf("get pending authorization: %w", err)
	}
	return p, nil
}

// Latest retrieves the most recent pending authorization for a context key.
func (s *PendingAuthorizationStore) Latest(ctx context.Context, key domain.ContextKey) (*domain.PendingAuthorization, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT state, user_id, chat_id, thread_id, created_at
		FROM pending_authorizations
		WHERE user_id = $1 AND chat_id = $2 AND thread_id IS NOT DISTINCT FROM $3
		ORDER BY created_at DESC
		LIMIT 1
	`, key.UserID, key.ChatID, nullInt64(key.ThreadID))

	p, err := scanPending(row)
	if err != nil {
		return nil, fmt.Errorf("latest pending authorization: %w", err)
	}
	return p, nil
}

// Delete removes a pending authorization by state.
func (s *PendingAuthorizationStore) Delete(ctx context.Context, state string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_authorizations WHERE state = $1`, state); err != nil {
		return fmt.Errorf("delete pending authorization: %w", err)
	}
	return nil
}

// Cleanup removes pending authorizations created before olderThan.
func (s *PendingAuthorizationStore) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM pending_authorizations WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("cleanup pending authorizations: %w", err)
	}
	return result.RowsAffected()
}

// scanPending scans one row, mapping sql.ErrNoRows to domain.ErrNotFound.
func scanPending(row *sql.Row) (*domain.PendingAuthorization, error) {
	var (
		p              domain.PendingAuthorization
		userID, chatID int64
		threadID       sql.NullInt64
	)
	err := row.Scan(&p.State, &userID, &chatID, &threadID, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Key = contextKey(userID, chatID, threadID)
	return &p, nil
}
