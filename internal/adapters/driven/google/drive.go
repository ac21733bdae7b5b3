package google

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driven"
)

// Ensure DriveClient implements the interface.
var _ driven.StorageProvider = (*DriveClient)(nil)

const (
	driveTimeout   = 60 * time.Second
	folderMimeType = "application/vnd.google-apps.folder"
)

// DriveConfig holds Drive client settings.
type DriveConfig struct {
	// Endpoint overrides the Drive API base URL, e.g. "http://127.0.0.1:8080/drive/v3/" (tests).
	Endpoint string
	Timeout  time.Duration // default: 60s
}

// DriveClient provides Drive operations. Every call uses the credential it is
// handed as-is: tokens are never refreshed here.
type DriveClient struct {
	endpoint string
	timeout  time.Duration
}

// NewDriveClient creates a new Drive client.
func NewDriveClient(cfg DriveConfig) *DriveClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = driveTimeout
	}
	return &DriveClient{
		endpoint: cfg.Endpoint,
		timeout:  timeout,
	}
}

// FindFolder looks up a non-trashed folder by exact name anywhere in the drive.
func (c *DriveClient) FindFolder(ctx context.Context, creds domain.OAuthCredentials, name string) (string, bool, error) {
	svc, err := c.service(ctx, creds)
	if err != nil {
		return "", false, err
	}

	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(name), folderMimeType)
	list, err := svc.Files.List().
		Q(q).
		Spaces("drive").
		Fields("files(id, name)").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", false, classifyDriveError("find folder", err)
	}
	if len(list.Files) == 0 {
		return "", false, nil
	}
	return list.Files[0].Id, true, nil
}

// CreateFolder creates a folder in the drive root.
func (c *DriveClient) CreateFolder(ctx context.Context, creds domain.OAuthCredentials, name string) (string, error) {
	svc, err := c.service(ctx, creds)
	if err != nil {
		return "", err
	}

	created, err := svc.Files.Create(&drive.File{Name: name, MimeType: folderMimeType}).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", classifyDriveError("create folder", err)
	}
	if created.Id == "" {
		return "", errors.New("create folder: response has no id")
	}
	return created.Id, nil
}

// Upload stores file under folderID (drive root when empty) and returns its
// web link. Content above one upload chunk goes through a resumable session.
func (c *DriveClient) Upload(ctx context.Context, creds domain.OAuthCredentials, file *domain.UploadFile, folderID string) (string, error) {
	svc, err := c.service(ctx, creds)
	if err != nil {
		return "", err
	}

	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	meta := &drive.File{Name: file.Name}
	if folderID != "" {
		meta.Parents = []string{folderID}
	}

	uploaded, err := svc.Files.Create(meta).
		Media(bytes.NewReader(file.Content), googleapi.ContentType(mimeType)).
		Fields("id", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", classifyDriveError("upload file", err)
	}
	if uploaded.WebViewLink != "" {
		return uploaded.WebViewLink, nil
	}
	if uploaded.Id == "" {
		return "", errors.New("upload file: response has no id")
	}
	return "https://drive.google.com/file/d/" + uploaded.Id + "/view", nil
}

// service builds a Drive service that presents creds' access token unchanged.
func (c *DriveClient) service(ctx context.Context, creds domain.OAuthCredentials) (*drive.Service, error) {
	opts := []option.ClientOption{option.WithHTTPClient(bearerClient(creds.AccessToken, c.timeout))}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return svc, nil
}

// bearerClient sends accessToken on every request and never refreshes it.
func bearerClient(accessToken string, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
		},
	}
}

// classifyDriveError marks rejected credentials with driven.ErrAccessRevoked.
// 401 and permission-type 403s mean the credential itself was rejected;
// rate-limit 403s do not.
func classifyDriveError(op string, err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	reason := ""
	if len(gerr.Errors) > 0 {
		reason = gerr.Errors[0].Reason
	}
	switch {
	case gerr.Code == http.StatusUnauthorized,
		gerr.Code == http.StatusForbidden && !isRateLimitReason(reason):
		return fmt.Errorf("%s: %w: %w", op, driven.ErrAccessRevoked, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isRateLimitReason(reason string) bool {
	switch reason {
	case "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded", "quotaExceeded":
		return true
	}
	return false
}

// escapeQuery quotes a value for a Drive query string literal.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
