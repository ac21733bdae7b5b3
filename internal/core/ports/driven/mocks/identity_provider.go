package mocks

import (
	"context"
	"net/url"
	"sync"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
)

// MockIdentityProvider is a mock IdentityProvider with per-call hooks and counters.
type MockIdentityProvider struct {
	mu sync.Mutex

	ExchangeFn     func(code string) (*domain.ProviderToken, error)
	RefreshFn      func(refreshToken string) (*domain.ProviderToken, error)
	AccountEmailFn func(accessToken string) (string, error)

	// RefreshCtxFn takes precedence over RefreshFn and sees the call's context.
	RefreshCtxFn func(ctx context.Context, refreshToken string) (*domain.ProviderToken, error)

	ExchangeCalls     int
	RefreshCalls      int
	AccountEmailCalls int
}

// NewMockIdentityProvider creates a new MockIdentityProvider.
func NewMockIdentityProvider() *MockIdentityProvider {
	return &MockIdentityProvider{}
}

func (m *MockIdentityProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state) + "&access_type=offline&prompt=consent"
}

func (m *MockIdentityProvider) Exchange(ctx context.Context, code string) (*domain.ProviderToken, error) {
	m.mu.Lock()
	m.ExchangeCalls++
	m.mu.Unlock()

	if m.ExchangeFn != nil {
		return m.ExchangeFn(code)
	}
	return &domain.ProviderToken{AccessToken: "access-" + code, RefreshToken: "refresh-" + code}, nil
}

func (m *MockIdentityProvider) Refresh(ctx context.Context, refreshToken string) (*domain.ProviderToken, error) {
	m.mu.Lock()
	m.RefreshCalls++
	m.mu.Unlock()

	if m.RefreshCtxFn != nil {
		return m.RefreshCtxFn(ctx, refreshToken)
	}
	if m.RefreshFn != nil {
		return m.RefreshFn(refreshToken)
	}
	return &domain.ProviderToken{AccessToken: "refreshed-access"}, nil
}

func (m *MockIdentityProvider) AccountEmail(ctx context.Context, accessToken string) (string, error) {
	m.mu.Lock()
	m.AccountEmailCalls++
	m.mu.Unlock()

	if m.AccountEmailFn != nil {
		return m.AccountEmailFn(accessToken)
	}
	return "user@example.com", nil
}

func (m *MockIdentityProvider) ClientID() string     { return "client-id" }
func (m *MockIdentityProvider) ClientSecret() string { return "client-secret" }

// Calls returns the total number of network-backed calls made.
func (m *MockIdentityProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExchangeCalls + m.RefreshCalls + m.AccountEmailCalls
}
