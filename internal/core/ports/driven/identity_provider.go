package driven

import (
	"context"
	"errors"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
)

// ErrInvalidGrant is returned by IdentityProvider when the provider rejects a
// code or refresh token as invalid, expired, revoked or already used.
var ErrInvalidGrant = errors.New("invalid grant")

// IdentityProvider is the OAuth 2.0 authorization server the user links.
type IdentityProvider interface {
	// AuthCodeURL builds the consent URL carrying state. It requests offline
	// access and forces re-consent so a refresh token is always issued.
	AuthCodeURL(state string) string

	// Exchange redeems a one-time authorization code.
	Exchange(ctx context.Context, code string) (*domain.ProviderToken, error)

	// Refresh obtains a new access token. The returned RefreshToken is empty
	// unless the provider rotated it.
	Refresh(ctx context.Context, refreshToken string) (*domain.ProviderToken, error)

	// AccountEmail returns the email of the account owning accessToken.
	AccountEmail(ctx context.Context, accessToken string) (string, error)

	// ClientID and ClientSecret identify this application to the provider.
	ClientID() string
	ClientSecret() string
}
