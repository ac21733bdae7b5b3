package driven

import (
	"context"
	"errors"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
)

// ErrAccessRevoked is returned by StorageProvider when the provider rejects
// the credential (revoked grant, removed scope).
var ErrAccessRevoked = errors.New("access revoked")

// StorageProvider is the cloud drive files are relayed to.
// Credentials are used as given; implementations never refresh them.
type StorageProvider interface {
	// FindFolder looks up a non-trashed folder by exact name.
	FindFolder(ctx context.Context, creds domain.OAuthCredentials, name string) (id string, found bool, err error)

	// CreateFolder creates a folder and returns its ID.
	CreateFolder(ctx context.Context, creds domain.OAuthCredentials, name string) (string, error)

	// Upload stores file under folderID (drive root when empty) and returns a shareable link.
	Upload(ctx context.Context, creds domain.OAuthCredentials, file *domain.UploadFile, folderID string) (link string, err error)
}
