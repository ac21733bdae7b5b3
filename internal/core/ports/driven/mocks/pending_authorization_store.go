package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
)

// MockPendingAuthorizationStore is an in-memory PendingAuthorizationStore for testing.
type MockPendingAuthorizationStore struct {
	mu      sync.RWMutex
	byState map[string]*domain.PendingAuthorization

	// Custom behavior hooks (optional)
	SaveFn   func(p *domain.PendingAuthorization) error
	LatestFn func(key domain.ContextKey) (*domain.PendingAuthorization, error)

	SaveCalls   int
	DeleteCalls int
}

// NewMockPendingAuthorizationStore creates a new MockPendingAuthorizationStore.
func NewMockPendingAuthorizationStore() *MockPendingAuthorizationStore {
	return &MockPendingAuthorizationStore{
		byState: make(map[string]*domain.PendingAuthorization),
	}
}

func (m *MockPendingAuthorizationStore) Save(ctx context.Context, p *domain.PendingAuthorization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++

	if m.SaveFn != nil {
		if err := m.SaveFn(p); err != nil {
			return err
		}
	}

	for state, existing := range m.byState {
		if existing.Key.Equal(p.Key) {
			delete(m.byState, state)
		}
	}
	cp := *p
	m.byState[p.State] = &cp
	return nil
}

func (m *MockPendingAuthorizationStore) Get(ctx context.Context, state string) (*domain.PendingAuthorization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byState[state]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPendingAuthorizationStore) Latest(ctx context.Context, key domain.ContextKey) (*domain.PendingAuthorization, error) {
	if m.LatestFn != nil {
		return m.LatestFn(key)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *domain.PendingAuthorization
	for _, p := range m.byState {
		if !p.Key.Equal(key) {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *MockPendingAuthorizationStore) Delete(ctx context.Context, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++

	delete(m.byState, state)
	return nil
}

func (m *MockPendingAuthorizationStore) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for state, p := range m.byState {
		if p.CreatedAt.Before(olderThan) {
			delete(m.byState, state)
			removed++
		}
	}
	return removed, nil
}

// Put stores a record as-is without superseding (for test setup).
func (m *MockPendingAuthorizationStore) Put(p *domain.PendingAuthorization) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.byState[p.State] = &cp
}

// Count returns the number of stored records.
func (m *MockPendingAuthorizationStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byState)
}
