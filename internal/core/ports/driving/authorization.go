package driving

import (
	"context"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
)

// AuthorizationService links a context key to a Google account.
type AuthorizationService interface {
	// Initiate starts a /connect. It records a pending authorization for key,
	// superseding older ones, and returns the consent URL to show the user.
	Initiate(ctx context.Context, key domain.ContextKey) (string, error)

	// Complete redeems a code pasted into the chat. The pending authorization
	// is resolved by recency since the chat carries no state.
	// Fails with domain.ErrNoPendingAuthorization or domain.ErrExchangeFailed.
	Complete(ctx context.Context, key domain.ContextKey, code string) (*domain.Credential, error)

	// CompleteWithState redeems a code delivered to the OAuth callback,
	// resolving the pending authorization by state.
	CompleteWithState(ctx context.Context, state, code string) (*domain.Credential, error)

	// Disconnect removes the credential for key. Returns false when nothing was connected.
	Disconnect(ctx context.Context, key domain.ContextKey) (bool, error)

	// Status returns the credential for key or domain.ErrNotConnected.
	Status(ctx context.Context, key domain.ContextKey) (*domain.Credential, error)
}
