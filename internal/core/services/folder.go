package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driven"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driving"
)

// Ensure folderService implements FolderService
var _ driving.FolderService = (*folderService)(nil)

// FolderServiceConfig holds configuration for the folder service.
type FolderServiceConfig struct {
	CredentialStore driven.CredentialStore
	Freshness       *Freshness
	Storage         driven.StorageProvider
	Logger          *slog.Logger

	// Lock serializes find-or-create per context key and folder name (optional).
	// Without it two concurrent calls for the same name may create two folders.
	Lock     driven.DistributedLock
	LockTTL  time.Duration // default: 30s
	LockWait time.Duration // default: 15s
}

type folderService struct {
	credentials driven.CredentialStore
	freshness   *Freshness
	storage     driven.StorageProvider
	lock        driven.DistributedLock
	logger      *slog.Logger
	lockTTL     time.Duration
	lockWait    time.Duration
}

// NewFolderService creates a new folder service.
func NewFolderService(cfg FolderServiceConfig) driving.FolderService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = defaultLockTTL
	}
	lockWait := cfg.LockWait
	if lockWait == 0 {
		lockWait = defaultLockWait
	}

	return &folderService{
		credentials: cfg.CredentialStore,
		freshness:   cfg.Freshness,
		storage:     cfg.Storage,
		lock:        cfg.Lock,
		logger:      logger,
		lockTTL:     lockTTL,
		lockWait:    lockWait,
	}
}

// SetFolder finds a folder by exact name, creating it when absent, and stores
// its ID on the credential. Lookups are never cached.
func (s *folderService) SetFolder(ctx context.Context, key domain.ContextKey, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: folder name is empty", domain.ErrInvalidInput)
	}

	cred, err := s.credentials.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrNotConnected
		}
		return "", fmt.Errorf("get credential: %w", err)
	}

	cred, err = s.freshness.EnsureFresh(ctx, cred)
	if err != nil {
		return "", err
	}

	if s.lock != nil {
		lockName := "folder:" + key.String() + ":" + name
		if _, err := acquireOrWait(ctx, s.lock, lockName, s.lockTTL, s.lockWait, nil); err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
		}
		defer func() {
			if err := s.lock.Release(ctx, lockName); err != nil {
				s.logger.Warn("failed to release folder lock", "context_key", key.String(), "error", err)
			}
		}()
	}

	creds := s.freshness.OAuthCredentials(cred)
	folderID, found, err := s.storage.FindFolder(ctx, creds, name)
	if err != nil {
		return "", storageError("find folder", err)
	}
	if !found {
		folderID, err = s.storage.CreateFolder(ctx, creds, name)
		if err != nil {
			return "", storageError("create folder", err)
		}
		s.logger.Info("folder created", "context_key", key.String(), "folder_id", folderID)
	}

	if err := s.credentials.UpdateFolder(ctx, key, folderID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrNotConnected
		}
		return "", fmt.Errorf("persist folder: %w", err)
	}

	s.logger.Info("upload folder selected", "context_key", key.String(), "folder_id", folderID, "reused", found)
	return folderID, nil
}

// storageError maps a storage provider failure into the error taxonomy.
func storageError(op string, err error) error {
	if errors.Is(err, driven.ErrAccessRevoked) {
		return fmt.Errorf("%w: %s: %v", domain.ErrReauthorizationRequired, op, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrDeliveryFailed, op, err)
}
