package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driven"
)

// Ensure CredentialStore implements the interface.
var _ driven.CredentialStore = (*CredentialStore)(nil)

// CredentialStore implements driven.CredentialStore using PostgreSQL.
// Tokens are sealed into secret_blob; every other column is plaintext.
type CredentialStore struct {
	db     *DB
	cipher *TokenCipher
}

// NewCredentialStore creates a new PostgreSQL-backed credential store.
func NewCredentialStore(db *DB, cipher *TokenCipher) *CredentialStore {
	return &CredentialStore{
		db:     db,
		cipher: cipher,
	}
}

// Save upserts the credential for cred.Key. The credentials_context_key
// constraint keeps one row per key even under concurrent saves.
func (s *CredentialStore) Save(ctx context.Context, cred *domain.Credential) error {
	blob, err := s.cipher.seal(tokenSecrets{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
	}, cred.Key.String())
	if err != nil {
		return fmt.Errorf("seal tokens: %w", err)
	}

	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	now := time.Now()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	query := `
		INSERT INTO credentials (
			id, user_id, chat_id, thread_id, account_email, secret_blob,
			token_expiry, folder_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT ON CONSTRAINT credentials_context_key DO UPDATE SET
			account_email = EXCLUDED.account_email,
			secret_blob = EXCLUDED.secret_blob,
			token_expiry = EXCLUDED.token_expiry,
			folder_id = COALESCE(EXCLUDED.folder_id, credentials.folder_id),
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, folder_id
	`

	var folderID sql.NullString
	err = s.db.QueryRowContext(ctx, query,
		cred.ID,
		cred.Key.UserID,
		cred.Key.ChatID,
		nullInt64(cred.Key.ThreadID),
		cred.AccountEmail,
		blob,
		nullTime(cred.TokenExpiry),
		nullString(cred.FolderID),
		cred.CreatedAt,
		cred.UpdatedAt,
	).Scan(&cred.ID, &cred.CreatedAt, &folderID)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	cred.FolderID = folderID.String

	return nil
}

// Get retrieves the credential for a context key with decrypted tokens.
func (s *CredentialStore) Get(ctx context.Context, key domain.ContextKey) (*domain.Credential, error) {
	query := `
		SELECT id, account_email, secret_blob, token_expiry, folder_id, created_at, updated_at
		FROM credentials
		WHERE user_id = $1 AND chat_id = $2 AND thread_id IS NOT DISTINCT FROM $3
	`

	var (
		cred        = domain.Credential{Key: key}
		blob        []byte
		tokenExpiry sql.NullTime
		folderID    sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, key.UserID, key.ChatID, nullInt64(key.ThreadID)).Scan(
		&cred.ID,
		&cred.AccountEmail,
		&blob,
		&tokenExpiry,
		&folderID,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}

	tokens, err := s.cipher.open(blob, key.String())
	if err != nil {
		return nil, fmt.Errorf("open tokens: %w", err)
	}
	cred.AccessToken = tokens.AccessToken
	cred.RefreshToken = tokens.RefreshToken
	cred.TokenExpiry = timePtr(tokenExpiry)
	cred.FolderID = folderID.String

	return &cred, nil
}

// Delete removes the credential for a context key.
func (s *CredentialStore) Delete(ctx context.Context, key domain.ContextKey) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM credentials
		WHERE user_id = $1 AND chat_id = $2 AND thread_id IS NOT DISTINCT FROM $3
	`, key.UserID, key.ChatID, nullInt64(key.ThreadID))
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateToken reseals the blob with a new access token, keeping the stored
// refresh token. The row is locked for the read-modify-write.
func (s *CredentialStore) UpdateToken(ctx context.Context, key domain.ContextKey, accessToken string, expiry *time.Time) error {
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var (
			id   string
			blob []byte
		)
		err := tx.QueryRowContext(ctx, `
			SELECT id, secret_blob
			FROM credentials
			WHERE user_id = $1 AND chat_id = $2 AND thread_id IS NOT DISTINCT FROM $3
			FOR UPDATE
		`, key.UserID, key.ChatID, nullInt64(key.ThreadID)).Scan(&id, &blob)
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		tokens, err := s.cipher.open(blob, key.String())
		if err != nil {
			return fmt.Errorf("open tokens: %w", err)
		}
		tokens.AccessToken = accessToken

		blob, err = s.cipher.seal(tokens, key.String())
		if err != nil {
			return fmt.Errorf("seal tokens: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE credentials
			SET secret_blob = $2, token_expiry = $3, updated_at = $4
			WHERE id = $1
		`, id, blob, nullTime(expiry), time.Now())
		return err
	})
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	return nil
}

// UpdateFolder sets or clears the upload folder.
func (s *CredentialStore) UpdateFolder(ctx context.Context, key domain.ContextKey, folderID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE credentials
		SET folder_id = $4, updated_at = $5
		WHERE user_id = $1 AND chat_id = $2 AND thread_id IS NOT DISTINCT FROM $3
	`, key.UserID, key.ChatID, nullInt64(key.ThreadID), nullString(folderID), time.Now())
	if err != nil {
		return fmt.Errorf("update folder: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update folder: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
