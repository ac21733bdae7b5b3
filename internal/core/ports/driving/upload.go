package driving

import (
	"context"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
)

// UploadService relays one chat attachment to the connected drive.
type UploadService interface {
	// Upload runs one attempt. The result always carries the outcome; err is
	// non-nil for every outcome except domain.OutcomeUploaded.
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
}

// UploadRequest identifies who uploads what.
type UploadRequest struct {
	Key  domain.ContextKey
	File domain.FileRef
}

// UploadResult is the terminal state of an upload attempt.
type UploadResult struct {
	Outcome  domain.Outcome
	FileName string
	// Link is the shareable reference, set only when Outcome is OutcomeUploaded.
	Link string
}
