package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driven"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driving"
)

func uploadRequest(size int64) driving.UploadRequest {
	return driving.UploadRequest{
		Key: chatKey(),
		File: domain.FileRef{
			ID:       "file-1",
			Name:     "report.pdf",
			MimeType: "application/pdf",
			Size:     size,
		},
	}
}

func TestUpload_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.connect(chatKey(), time.Hour)
	require.NoError(t, f.creds.UpdateFolder(ctx, chatKey(), "folder-9"))

	res, err := f.upload.Upload(ctx, uploadRequest(1024))
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeUploaded, res.Outcome)
	assert.Equal(t, "https://drive.example.com/file/report.pdf", res.Link)
	assert.Equal(t, "report.pdf", res.FileName)

	assert.Equal(t, "folder-9", f.storage.LastFolderID)
	assert.Equal(t, "stored-access", f.storage.LastCreds.AccessToken)
	assert.Equal(t, "client-id", f.storage.LastCreds.ClientID)
	assert.Equal(t, "application/pdf", f.storage.LastFile.MimeType)
	assert.Equal(t, []byte("content of file-1"), f.storage.LastFile.Content)
	assert.Zero(t, f.idp.Calls())
}

func TestUpload_UsesRefreshedToken(t *testing.T) {
	f := newFixture(t)
	f.connect(chatKey(), 2*time.Minute)

	res, err := f.upload.Upload(context.Background(), uploadRequest(10))
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeUploaded, res.Outcome)
	assert.Equal(t, 1, f.idp.RefreshCalls)
	assert.Equal(t, "refreshed-access", f.storage.LastCreds.AccessToken)
	assert.Empty(t, f.storage.LastFolderID, "no folder means drive root")
}

func TestUpload_NotConnected(t *testing.T) {
	f := newFixture(t)

	res, err := f.upload.Upload(context.Background(), uploadRequest(10))
	assert.ErrorIs(t, err, domain.ErrNotConnected)
	assert.Equal(t, domain.OutcomeNotConnected, res.Outcome)

	assert.Zero(t, f.idp.Calls())
	assert.Zero(t, f.source.Calls())
	assert.Zero(t, f.storage.Calls())
}

func TestUpload_TooLarge(t *testing.T) {
	f := newFixture(t)
	// Expired so a freshness call would be visible.
	f.connect(chatKey(), 0)

	res, err := f.upload.Upload(context.Background(), uploadRequest(domain.MaxUploadSize+1))
	assert.ErrorIs(t, err, domain.ErrTooLarge)
	assert.Equal(t, domain.OutcomeTooLarge, res.Outcome)

	assert.Zero(t, f.idp.Calls())
	assert.Zero(t, f.creds.UpdateTokenCalls)
	assert.Zero(t, f.source.Calls())
	assert.Zero(t, f.storage.Calls())
}

func TestUpload_ExactlyAtLimit(t *testing.T) {
	f := newFixture(t)
	f.connect(chatKey(), time.Hour)

	res, err := f.upload.Upload(context.Background(), uploadRequest(domain.MaxUploadSize))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUploaded, res.Outcome)
}

func TestUpload_DownloadedContentTooLarge(t *testing.T) {
	f := newFixture(t)
	f.connect(chatKey(), time.Hour)
	f.source.DownloadFn = func(ref domain.FileRef) ([]byte, error) {
		return make([]byte, domain.MaxUploadSize+1), nil
	}

	// Size 0 means the transport did not report one.
	res, err := f.upload.Upload(context.Background(), uploadRequest(0))
	assert.ErrorIs(t, err, domain.ErrTooLarge)
	assert.Equal(t, domain.OutcomeTooLarge, res.Outcome)
	assert.Zero(t, f.storage.Calls())
}

func TestUpload_FailureOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *fixture)
		want      domain.Outcome
		wantErr   error
		uploads   int
		downloads int
	}{
		{
			name: "refresh denied",
			setup: func(f *fixture) {
				f.connect(chatKey(), 0)
				f.idp.RefreshFn = func(string) (*domain.ProviderToken, error) {
					return nil, driven.ErrInvalidGrant
				}
			},
			want:    domain.OutcomeReauthorizationRequired,
			wantErr: domain.ErrRefreshDenied,
		},
		{
			name: "refresh unavailable",
			setup: func(f *fixture) {
				f.connect(chatKey(), 0)
				f.idp.RefreshFn = func(string) (*domain.ProviderToken, error) {
					return nil, errors.New("502 bad gateway")
				}
			},
			want:    domain.OutcomeTransientFailure,
			wantErr: domain.ErrRefreshUnavailable,
		},
		{
			name: "download fails",
			setup: func(f *fixture) {
				f.connect(chatKey(), time.Hour)
				f.source.DownloadFn = func(domain.FileRef) ([]byte, error) {
					return nil, errors.New("file is too big")
				}
			},
			want:      domain.OutcomeSourceFetchFailed,
			wantErr:   domain.ErrSourceFetchFailed,
			downloads: 1,
		},
		{
			name: "access revoked during delivery",
			setup: func(f *fixture) {
				f.connect(chatKey(), time.Hour)
				f.storage.UploadFn = func(domain.OAuthCredentials, *domain.UploadFile, string) (string, error) {
					return "", fmt.Errorf("drive: 401: %w", driven.ErrAccessRevoked)
				}
			},
			want:      domain.OutcomeReauthorizationRequired,
			wantErr:   domain.ErrReauthorizationRequired,
			downloads: 1,
			uploads:   1,
		},
		{
			name: "delivery fails",
			setup: func(f *fixture) {
				f.connect(chatKey(), time.Hour)
				f.storage.UploadFn = func(domain.OAuthCredentials, *domain.UploadFile, string) (string, error) {
					return "", errors.New("drive: 500")
				}
			},
			want:      domain.OutcomeDeliveryFailed,
			wantErr:   domain.ErrDeliveryFailed,
			downloads: 1,
			uploads:   1,
		},
		{
			name: "credential store down",
			setup: func(f *fixture) {
				f.creds.GetFn = func(domain.ContextKey) (*domain.Credential, error) {
					return nil, errors.New("connection refused")
				}
			},
			want: domain.OutcomeTransientFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			res, err := f.upload.Upload(context.Background(), uploadRequest(100))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.want, res.Outcome)
			assert.Empty(t, res.Link)
			assert.Equal(t, tt.downloads, f.source.Calls())
			assert.Equal(t, tt.uploads, f.storage.UploadCalls)
		})
	}
}
