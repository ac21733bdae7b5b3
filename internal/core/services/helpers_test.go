package services

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driving"
)

var (
	testUser   int64 = 1001
	testChat   int64 = -100200
	testThread int64 = 7
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testClock is a settable clock shared by every service of a fixture.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fixture wires all services against in-memory mocks.
type fixture struct {
	clock   *testClock
	pending *mocks.MockPendingAuthorizationStore
	creds   *mocks.MockCredentialStore
	idp     *mocks.MockIdentityProvider
	storage *mocks.MockStorageProvider
	source  *mocks.MockFileSource

	freshness *Freshness
	auth      driving.AuthorizationService
	upload    driving.UploadService
	folder    driving.FolderService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		clock:   &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		pending: mocks.NewMockPendingAuthorizationStore(),
		creds:   mocks.NewMockCredentialStore(),
		idp:     mocks.NewMockIdentityProvider(),
		storage: mocks.NewMockStorageProvider(),
		source:  mocks.NewMockFileSource(),
	}
	f.wire(FreshnessConfig{})
	return f
}

// wire (re)builds the services, applying fc on top of the fixture's stores.
func (f *fixture) wire(fc FreshnessConfig) {
	logger := discardLogger()
	fc.Store = f.creds
	fc.Provider = f.idp
	fc.Logger = logger
	fc.Now = f.clock.Now
	f.freshness = NewFreshness(fc)

	f.auth = NewAuthorizationService(AuthorizationServiceConfig{
		PendingStore:    f.pending,
		CredentialStore: f.creds,
		Provider:        f.idp,
		Logger:          logger,
		Now:             f.clock.Now,
	})
	f.upload = NewUploadService(UploadServiceConfig{
		CredentialStore: f.creds,
		Freshness:       f.freshness,
		Source:          f.source,
		Storage:         f.storage,
		Logger:          logger,
	})
	f.folder = NewFolderService(FolderServiceConfig{
		CredentialStore: f.creds,
		Freshness:       f.freshness,
		Storage:         f.storage,
		Logger:          logger,
	})
}

// connect stores a credential whose token expires in validFor.
func (f *fixture) connect(key domain.ContextKey, validFor time.Duration) *domain.Credential {
	expiry := f.clock.Now().Add(validFor)
	cred := &domain.Credential{
		ID:           "cred-" + key.String(),
		Key:          key,
		AccountEmail: "user@example.com",
		AccessToken:  "stored-access",
		RefreshToken: "stored-refresh",
		TokenExpiry:  &expiry,
	}
	f.creds.Put(cred)
	return cred.Clone()
}

func chatKey() domain.ContextKey {
	return domain.NewContextKey(testUser, testChat, nil)
}

func threadKey() domain.ContextKey {
	return domain.NewContextKey(testUser, testChat, &testThread)
}
