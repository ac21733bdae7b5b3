package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driven"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driving"
)

// Ensure uploadService implements UploadService
var _ driving.UploadService = (*uploadService)(nil)

// UploadServiceConfig holds configuration for the upload service.
type UploadServiceConfig struct {
	CredentialStore driven.CredentialStore
	Freshness       *Freshness
	Source          driven.FileSource
	Storage         driven.StorageProvider
	Logger          *slog.Logger

	// MaxSize caps the file size in bytes (default: domain.MaxUploadSize).
	MaxSize int64
}

type uploadService struct {
	credentials driven.CredentialStore
	freshness   *Freshness
	source      driven.FileSource
	storage     driven.StorageProvider
	logger      *slog.Logger
	maxSize     int64
}

// NewUploadService creates a new upload service.
func NewUploadService(cfg UploadServiceConfig) driving.UploadService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = domain.MaxUploadSize
	}

	return &uploadService{
		credentials: cfg.CredentialStore,
		freshness:   cfg.Freshness,
		source:      cfg.Source,
		storage:     cfg.Storage,
		logger:      logger,
		maxSize:     maxSize,
	}
}

// Upload runs resolve, size check, freshen, fetch and deliver in order.
// The first failing step ends the attempt; nothing is retried.
func (s *uploadService) Upload(ctx context.Context, req driving.UploadRequest) (*driving.UploadResult, error) {
	result := &driving.UploadResult{FileName: req.File.Name}
	logger := s.logger.With(
		"attempt_id", uuid.NewString(),
		"context_key", req.Key.String(),
		"file_name", req.File.Name,
	)

	fail := func(err error) (*driving.UploadResult, error) {
		result.Outcome = domain.OutcomeOf(err)
		logger.Info("upload finished", "outcome", result.Outcome, "error", err)
		return result, err
	}

	// Resolve
	cred, err := s.credentials.Get(ctx, req.Key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fail(domain.ErrNotConnected)
		}
		return fail(fmt.Errorf("get credential: %w", err))
	}

	// Size check
	if req.File.Size > s.maxSize {
		return fail(fmt.Errorf("%w: %d bytes", domain.ErrTooLarge, req.File.Size))
	}

	// Freshen
	cred, err = s.freshness.EnsureFresh(ctx, cred)
	if err != nil {
		return fail(err)
	}

	// Fetch
	content, err := s.source.Download(ctx, req.File)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", domain.ErrSourceFetchFailed, err))
	}
	if int64(len(content)) > s.maxSize {
		return fail(fmt.Errorf("%w: %d bytes", domain.ErrTooLarge, len(content)))
	}

	// Deliver
	file := &domain.UploadFile{
		Name:     req.File.Name,
		MimeType: req.File.MimeType,
		Content:  content,
	}
	link, err := s.storage.Upload(ctx, s.freshness.OAuthCredentials(cred), file, cred.FolderID)
	if err != nil {
		if errors.Is(err, driven.ErrAccessRevoked) {
			return fail(fmt.Errorf("%w: %v", domain.ErrReauthorizationRequired, err))
		}
		return fail(fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err))
	}

	result.Outcome = domain.OutcomeUploaded
	result.Link = link
	logger.Info("upload finished", "outcome", result.Outcome, "size", len(content), "folder_id", cred.FolderID)
	return result, nil
}
