package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
)

// MockFileSource is a mock FileSource returning fixed content unless DownloadFn is set.
type MockFileSource struct {
	mu sync.Mutex

	DownloadFn func(ref domain.FileRef) ([]byte, error)

	DownloadCalls int
}

// NewMockFileSource creates a new MockFileSource.
func NewMockFileSource() *MockFileSource {
	return &MockFileSource{}
}

func (m *MockFileSource) Download(ctx context.Context, ref domain.FileRef) ([]byte, error) {
	m.mu.Lock()
	m.DownloadCalls++
	m.mu.Unlock()

	if m.DownloadFn != nil {
		return m.DownloadFn(ref)
	}
	return []byte("content of " + ref.ID), nil
}

// Calls returns the number of downloads made.
func (m *MockFileSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.DownloadCalls
}
