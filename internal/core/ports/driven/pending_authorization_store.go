package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
)

// PendingAuthorizationStore persists in-flight /connect attempts.
type PendingAuthorizationStore interface {
	// Save stores a new pending authorization. Any older record for the same
	// context key is superseded, so at most one attempt is in flight per key.
	Save(ctx context.Context, p *domain.PendingAuthorization) error

	// Get retrieves a record by state.
	// Returns domain.ErrNotFound if the state is unknown.
	Get(ctx context.Context, state string) (*domain.PendingAuthorization, error)

	// Latest retrieves the most recent record for a context key.
	// Returns domain.ErrNotFound if there is none.
	Latest(ctx context.Context, key domain.ContextKey) (*domain.PendingAuthorization, error)

	// Delete removes a record by state. Deleting an unknown state is not an error.
	Delete(ctx context.Context, state string) error

	// Cleanup removes records created before olderThan and returns how many were removed.
	Cleanup(ctx context.Context, olderThan time.Time) (int64, error)
}
