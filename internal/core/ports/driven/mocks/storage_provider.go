package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
)

// MockStorageProvider is a mock StorageProvider. Without hooks it keeps
// folders in memory and returns a fixed link per upload.
type MockStorageProvider struct {
	mu      sync.Mutex
	folders map[string]string

	FindFolderFn   func(creds domain.OAuthCredentials, name string) (string, bool, error)
	CreateFolderFn func(creds domain.OAuthCredentials, name string) (string, error)
	UploadFn       func(creds domain.OAuthCredentials, file *domain.UploadFile, folderID string) (string, error)

	FindFolderCalls   int
	CreateFolderCalls int
	UploadCalls       int

	// LastCreds and LastFolderID record the most recent Upload arguments.
	LastCreds    domain.OAuthCredentials
	LastFolderID string
	LastFile     *domain.UploadFile
}

// NewMockStorageProvider creates a new MockStorageProvider.
func NewMockStorageProvider() *MockStorageProvider {
	return &MockStorageProvider{folders: make(map[string]string)}
}

func (m *MockStorageProvider) FindFolder(ctx context.Context, creds domain.OAuthCredentials, name string) (string, bool, error) {
	m.mu.Lock()
	m.FindFolderCalls++
	m.mu.Unlock()

	if m.FindFolderFn != nil {
		return m.FindFolderFn(creds, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.folders[name]
	return id, ok, nil
}

func (m *MockStorageProvider) CreateFolder(ctx context.Context, creds domain.OAuthCredentials, name string) (string, error) {
	m.mu.Lock()
	m.CreateFolderCalls++
	m.mu.Unlock()

	if m.CreateFolderFn != nil {
		return m.CreateFolderFn(creds, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id := "folder-" + name
	m.folders[name] = id
	return id, nil
}

func (m *MockStorageProvider) Upload(ctx context.Context, creds domain.OAuthCredentials, file *domain.UploadFile, folderID string) (string, error) {
	m.mu.Lock()
	m.UploadCalls++
	m.LastCreds = creds
	m.LastFolderID = folderID
	m.LastFile = file
	m.mu.Unlock()

	if m.UploadFn != nil {
		return m.UploadFn(creds, file, folderID)
	}
	return "https://drive.example.com/file/" + file.Name, nil
}

// Calls returns the total number of calls made.
func (m *MockStorageProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.FindFolderCalls + m.CreateFolderCalls + m.UploadCalls
}
