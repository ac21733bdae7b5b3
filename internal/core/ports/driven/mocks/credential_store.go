package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
)

// MockCredentialStore is an in-memory CredentialStore for testing.
// Records are keyed by ContextKey.String(), which keeps one record per key.
type MockCredentialStore struct {
	mu    sync.RWMutex
	creds map[string]*domain.Credential

	// Custom behavior hooks (optional)
	GetFn          func(key domain.ContextKey) (*domain.Credential, error)
	SaveFn         func(cred *domain.Credential) error
	UpdateTokenFn  func(key domain.ContextKey, accessToken string, expiry *time.Time) error
	UpdateFolderFn func(key domain.ContextKey, folderID string) error

	GetCalls          int
	SaveCalls         int
	UpdateTokenCalls  int
	UpdateFolderCalls int
}

// NewMockCredentialStore creates a new MockCredentialStore.
func NewMockCredentialStore() *MockCredentialStore {
	return &MockCredentialStore{
		creds: make(map[string]*domain.Credential),
	}
}

func (m *MockCredentialStore) Save(ctx context.Context, cred *domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++

	if m.SaveFn != nil {
		if err := m.SaveFn(cred); err != nil {
			return err
		}
	}

	id := cred.Key.String()
	if existing, ok := m.creds[id]; ok {
		cred.ID = existing.ID
		cred.CreatedAt = existing.CreatedAt
		if cred.FolderID == "" {
			cred.FolderID = existing.FolderID
		}
	}
	if cred.ID == "" {
		cred.ID = "cred-" + id
	}
	now := time.Now()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now
	m.creds[id] = cred.Clone()
	return nil
}

func (m *MockCredentialStore) Get(ctx context.Context, key domain.ContextKey) (*domain.Credential, error) {
	m.mu.Lock()
	m.GetCalls++
	m.mu.Unlock()

	if m.GetFn != nil {
		return m.GetFn(key)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	cred, ok := m.creds[key.String()]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cred.Clone(), nil
}

func (m *MockCredentialStore) Delete(ctx context.Context, key domain.ContextKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.creds[key.String()]; !ok {
		return domain.ErrNotFound
	}
	delete(m.creds, key.String())
	return nil
}

func (m *MockCredentialStore) UpdateToken(ctx context.Context, key domain.ContextKey, accessToken string, expiry *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateTokenCalls++

	if m.UpdateTokenFn != nil {
		if err := m.UpdateTokenFn(key, accessToken, expiry); err != nil {
			return err
		}
	}

	cred, ok := m.creds[key.String()]
	if !ok {
		return domain.ErrNotFound
	}
	cred.AccessToken = accessToken
	cred.TokenExpiry = nil
	if expiry != nil {
		t := *expiry
		cred.TokenExpiry = &t
	}
	cred.UpdatedAt = time.Now()
	return nil
}

func (m *MockCredentialStore) UpdateFolder(ctx context.Context, key domain.ContextKey, folderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateFolderCalls++

	if m.UpdateFolderFn != nil {
		if err := m.UpdateFolderFn(key, folderID); err != nil {
			return err
		}
	}

	cred, ok := m.creds[key.String()]
	if !ok {
		return domain.ErrNotFound
	}
	cred.FolderID = folderID
	cred.UpdatedAt = time.Now()
	return nil
}

// Put stores a credential directly (for test setup).
func (m *MockCredentialStore) Put(cred *domain.Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[cred.Key.String()] = cred.Clone()
}

// Count returns the number of stored credentials.
func (m *MockCredentialStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.creds)
}
