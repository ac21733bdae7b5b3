package driven

import (
	"context"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
)

// FileSource downloads attachment bytes from the chat transport.
type FileSource interface {
	Download(ctx context.Context, ref domain.FileRef) ([]byte, error)
}
