package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
)

// CredentialStore persists established connections with encrypted token material.
// Implementations guarantee at most one record per context key.
type CredentialStore interface {
	// Save inserts a credential or replaces the one stored for the same context key.
	// On replace the existing ID, CreatedAt and (when cred has none) FolderID
	// are kept and written back into cred.
	Save(ctx context.Context, cred *domain.Credential) error

	// Get retrieves the credential for a context key with decrypted tokens.
	// Returns domain.ErrNotFound if the key is not connected.
	Get(ctx context.Context, key domain.ContextKey) (*domain.Credential, error)

	// Delete removes the credential for a context key.
	// Returns domain.ErrNotFound if the key is not connected.
	Delete(ctx context.Context, key domain.ContextKey) error

	// UpdateToken replaces the access token and its expiry after a refresh.
	// The refresh token is left as stored.
	UpdateToken(ctx context.Context, key domain.ContextKey, accessToken string, expiry *time.Time) error

	// UpdateFolder sets the upload folder. An empty folderID clears it.
	UpdateFolder(ctx context.Context, key domain.ContextKey, folderID string) error
}
