package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driven"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driving"
)

// Ensure authorizationService implements AuthorizationService
var _ driving.AuthorizationService = (*authorizationService)(nil)

// stateBytes is the entropy of an authorization state token.
const stateBytes = 32

// AuthorizationServiceConfig holds configuration for the authorization service.
type AuthorizationServiceConfig struct {
	// PendingStore holds in-flight /connect attempts.
	PendingStore driven.PendingAuthorizationStore

	// CredentialStore persists established connections.
	CredentialStore driven.CredentialStore

	// Provider is the OAuth identity provider.
	Provider driven.IdentityProvider

	Logger *slog.Logger

	// Now overrides the clock (tests).
	Now func() time.Time
}

// authorizationService implements the AuthorizationService interface.
type authorizationService struct {
	pending     driven.PendingAuthorizationStore
	credentials driven.CredentialStore
	provider    driven.IdentityProvider
	logger      *slog.Logger
	now         func() time.Time
}

// NewAuthorizationService creates a new authorization service.
func NewAuthorizationService(cfg AuthorizationServiceConfig) driving.AuthorizationService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &authorizationService{
		pending:     cfg.PendingStore,
		credentials: cfg.CredentialStore,
		provider:    cfg.Provider,
		logger:      logger,
		now:         now,
	}
}

// Initiate records a pending authorization and returns the consent URL.
func (s *authorizationService) Initiate(ctx context.Context, key domain.ContextKey) (string, error) {
	state, err := generateState()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}

	pending := &domain.PendingAuthorization{
		State:     state,
		Key:       key,
		CreatedAt: s.now(),
	}
	if err := s.pending.Save(ctx, pending); err != nil {
		return "", fmt.Errorf("save pending authorization: %w", err)
	}

	s.logger.Info("authorization initiated", "context_key", key.String())
	return s.provider.AuthCodeURL(state), nil
}

// Complete redeems a code pasted into the chat, correlated by recency.
func (s *authorizationService) Complete(ctx context.Context, key domain.ContextKey, code string) (*domain.Credential, error) {
	pending, err := s.pending.Latest(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoPendingAuthorization
		}
		return nil, fmt.Errorf("find pending authorization: %w", err)
	}
	return s.redeem(ctx, pending, code)
}

// CompleteWithState redeems a code delivered to the OAuth callback.
func (s *authorizationService) CompleteWithState(ctx context.Context, state, code string) (*domain.Credential, error) {
	if state == "" {
		return nil, domain.ErrNoPendingAuthorization
	}
	pending, err := s.pending.Get(ctx, state)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoPendingAuthorization
		}
		return nil, fmt.Errorf("get pending authorization: %w", err)
	}
	return s.redeem(ctx, pending, code)
}

// redeem exchanges code and stores the credential for the pending record's key.
// A rejected code leaves any existing credential untouched.
func (s *authorizationService) redeem(ctx context.Context, pending *domain.PendingAuthorization, code string) (*domain.Credential, error) {
	logger := s.logger.With("context_key", pending.Key.String())

	tok, err := s.provider.Exchange(ctx, code)
	if err != nil {
		logger.Warn("authorization code exchange failed", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrExchangeFailed, err)
	}
	if tok.RefreshToken == "" {
		logger.Warn("provider issued no refresh token")
		return nil, fmt.Errorf("%w: no refresh token issued", domain.ErrExchangeFailed)
	}

	// The code is consumed at this point, so a failed lookup cannot be retried either.
	email, err := s.provider.AccountEmail(ctx, tok.AccessToken)
	if err != nil {
		logger.Warn("account email lookup failed", "error", err)
		return nil, fmt.Errorf("%w: fetch account email: %v", domain.ErrExchangeFailed, err)
	}

	cred := &domain.Credential{
		Key:          pending.Key,
		AccountEmail: email,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenExpiry:  tok.Expiry,
	}
	if err := s.credentials.Save(ctx, cred); err != nil {
		return nil, fmt.Errorf("save credential: %w", err)
	}

	if err := s.pending.Delete(ctx, pending.State); err != nil {
		logger.Warn("failed to delete consumed pending authorization", "error", err)
	}

	logger.Info("account connected", "account_email", email)
	return cred, nil
}

// Disconnect removes the credential for key.
func (s *authorizationService) Disconnect(ctx context.Context, key domain.ContextKey) (bool, error) {
	if err := s.credentials.Delete(ctx, key); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("delete credential: %w", err)
	}
	s.logger.Info("account disconnected", "context_key", key.String())
	return true, nil
}

// Status returns the credential for key.
func (s *authorizationService) Status(ctx context.Context, key domain.ContextKey) (*domain.Credential, error) {
	cred, err := s.credentials.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotConnected
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return cred, nil
}

// generateState returns a URL-safe state token.
func generateState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
