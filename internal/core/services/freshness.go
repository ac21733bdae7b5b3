package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driven"
)

// Freshness keeps access tokens usable. It refreshes a credential that is
// inside domain.RefreshBuffer of its expiry and writes the result back.
//
// Without SingleFlight or Lock two concurrent callers may both refresh the
// same credential. Both use the same refresh token and the last write wins.
type Freshness struct {
	store    driven.CredentialStore
	provider driven.IdentityProvider
	lock     driven.DistributedLock
	logger   *slog.Logger
	now      func() time.Time

	singleFlight bool
	group        singleflight.Group

	lockTTL        time.Duration
	lockWait       time.Duration
	refreshTimeout time.Duration
}

// FreshnessConfig holds configuration for Freshness.
type FreshnessConfig struct {
	Store    driven.CredentialStore
	Provider driven.IdentityProvider
	Logger   *slog.Logger

	// SingleFlight collapses concurrent in-process refreshes of one context key.
	// The shared refresh is detached from the callers' contexts and bounded by
	// RefreshTimeout (default: 30s).
	SingleFlight   bool
	RefreshTimeout time.Duration

	// Lock serializes refreshes of one context key across processes (optional).
	// A caller that loses the race waits and reuses the winner's token.
	Lock     driven.DistributedLock
	LockTTL  time.Duration // default: 30s
	LockWait time.Duration // default: 15s

	// Now overrides the clock (tests).
	Now func() time.Time
}

// NewFreshness creates a new token freshness manager.
func NewFreshness(cfg FreshnessConfig) *Freshness {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = defaultLockTTL
	}
	lockWait := cfg.LockWait
	if lockWait == 0 {
		lockWait = defaultLockWait
	}
	refreshTimeout := cfg.RefreshTimeout
	if refreshTimeout == 0 {
		refreshTimeout = defaultRefreshTimeout
	}

	return &Freshness{
		store:          cfg.Store,
		provider:       cfg.Provider,
		lock:           cfg.Lock,
		logger:         logger,
		now:            now,
		singleFlight:   cfg.SingleFlight,
		lockTTL:        lockTTL,
		lockWait:       lockWait,
		refreshTimeout: refreshTimeout,
	}
}

// IsExpired reports whether a token with this expiry needs a refresh now.
func (f *Freshness) IsExpired(expiry *time.Time) bool {
	return domain.TokenExpired(expiry, f.now())
}

// EnsureFresh returns cred unchanged when its token is still fresh, without
// any external call. Otherwise it refreshes, persists and returns an updated copy.
//
// Errors: domain.ErrRefreshDenied when the refresh token was rejected,
// domain.ErrRefreshUnavailable for everything else.
func (f *Freshness) EnsureFresh(ctx context.Context, cred *domain.Credential) (*domain.Credential, error) {
	if !f.IsExpired(cred.TokenExpiry) {
		return cred, nil
	}

	if !f.singleFlight {
		return f.refreshSerialized(ctx, cred)
	}

	// The refresh outlives its initiator so that callers who joined it are unaffected.
	ch := f.group.DoChan(cred.Key.String(), func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.refreshTimeout)
		defer cancel()
		return f.refreshSerialized(rctx, cred)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", domain.ErrRefreshUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			f.logger.Debug("joined in-flight token refresh", "context_key", cred.Key.String())
		}
		return res.Val.(*domain.Credential).Clone(), nil
	}
}

// OAuthCredentials builds the plain credential record for the storage provider.
func (f *Freshness) OAuthCredentials(cred *domain.Credential) domain.OAuthCredentials {
	return domain.OAuthCredentials{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.TokenExpiry,
		ClientID:     f.provider.ClientID(),
		ClientSecret: f.provider.ClientSecret(),
	}
}

func (f *Freshness) refreshSerialized(ctx context.Context, cred *domain.Credential) (*domain.Credential, error) {
	if f.lock == nil {
		return f.refresh(ctx, cred)
	}

	name := "credential-refresh:" + cred.Key.String()
	var reused *domain.Credential
	acquired, err := acquireOrWait(ctx, f.lock, name, f.lockTTL, f.lockWait, func(ctx context.Context) bool {
		current, err := f.store.Get(ctx, cred.Key)
		if err != nil || f.IsExpired(current.TokenExpiry) {
			return false
		}
		reused = current
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRefreshUnavailable, err)
	}
	if !acquired {
		f.logger.Debug("reusing token refreshed by lock holder", "context_key", cred.Key.String())
		return reused, nil
	}
	defer func() {
		if err := f.lock.Release(ctx, name); err != nil {
			f.logger.Warn("failed to release refresh lock", "context_key", cred.Key.String(), "error", err)
		}
	}()

	// The previous holder may have finished between our read and the acquire.
	current, err := f.store.Get(ctx, cred.Key)
	if err == nil && !f.IsExpired(current.TokenExpiry) {
		return current, nil
	}
	if err == nil {
		cred = current
	}
	return f.refresh(ctx, cred)
}

func (f *Freshness) refresh(ctx context.Context, cred *domain.Credential) (*domain.Credential, error) {
	logger := f.logger.With("context_key", cred.Key.String())

	tok, err := f.provider.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		if errors.Is(err, driven.ErrInvalidGrant) {
			logger.Warn("refresh token rejected", "error", err)
			return nil, fmt.Errorf("%w: %v", domain.ErrRefreshDenied, err)
		}
		logger.Error("token refresh failed", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrRefreshUnavailable, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: provider returned no access token", domain.ErrRefreshUnavailable)
	}

	if err := f.store.UpdateToken(ctx, cred.Key, tok.AccessToken, tok.Expiry); err != nil {
		logger.Error("failed to persist refreshed token", "error", err)
		return nil, fmt.Errorf("%w: persist refreshed token: %v", domain.ErrRefreshUnavailable, err)
	}

	updated := cred.Clone()
	updated.AccessToken = tok.AccessToken
	updated.TokenExpiry = tok.Expiry
	updated.UpdatedAt = f.now()

	logger.Info("access token refreshed", "expires_at", tok.Expiry)
	return updated, nil
}
