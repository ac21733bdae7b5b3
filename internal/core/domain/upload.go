package domain

import "errors"

// MaxUploadSize is the largest file the chat transport lets a bot download (20 MiB).
const MaxUploadSize int64 = 20 * 1024 * 1024

// FileRef points at a file held by the chat transport.
type FileRef struct {
	// ID is the transport's opaque file identifier.
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	// Size is reported by the transport; 0 when unknown.
	Size int64 `json:"size"`
}

// UploadFile is the payload handed to the storage provider.
type UploadFile struct {
	Name     string
	MimeType string
	Content  []byte
}

// Outcome is the terminal state of one upload (or folder) attempt.
// Each outcome has exactly one user-facing message category.
type Outcome string

const (
	OutcomeUploaded                Outcome = "uploaded"
	OutcomeNotConnected            Outcome = "not_connected"
	OutcomeTooLarge                Outcome = "too_large"
	OutcomeReauthorizationRequired Outcome = "reauthorization_required"
	OutcomeTransientFailure        Outcome = "transient_failure"
	OutcomeSourceFetchFailed       Outcome = "source_fetch_failed"
	OutcomeDeliveryFailed          Outcome = "delivery_failed"
)

// OutcomeOf maps an error returned by the upload or folder services to its
// terminal outcome. A nil error is OutcomeUploaded. Errors outside the
// taxonomy (store outages, cancelled contexts) count as transient.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeUploaded
	case errors.Is(err, ErrNotConnected):
		return OutcomeNotConnected
	case errors.Is(err, ErrTooLarge):
		return OutcomeTooLarge
	case errors.Is(err, ErrRefreshDenied), errors.Is(err, ErrReauthorizationRequired):
		return OutcomeReauthorizationRequired
	case errors.Is(err, ErrRefreshUnavailable):
		return OutcomeTransientFailure
	case errors.Is(err, ErrSourceFetchFailed):
		return OutcomeSourceFetchFailed
	case errors.Is(err, ErrDeliveryFailed):
		return OutcomeDeliveryFailed
	default:
		return OutcomeTransientFailure
	}
}
