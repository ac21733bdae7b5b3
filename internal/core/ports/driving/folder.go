package driving

import (
	"context"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
)

// FolderService selects the drive folder uploads go to.
type FolderService interface {
	// SetFolder finds or creates a folder named name and stores it on the
	// credential for key. Returns the folder ID.
	SetFolder(ctx context.Context, key domain.ContextKey, name string) (string, error)
}
