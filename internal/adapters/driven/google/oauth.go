// Package google implements the identity provider and storage provider ports
// against Google OAuth 2.0 and the Drive v3 API.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driven"
)

// Ensure OAuthProvider implements the interface.
var _ driven.IdentityProvider = (*OAuthProvider)(nil)

const oauthTimeout = 30 * time.Second

// DefaultScopes are requested when OAuthConfig.Scopes is empty.
var DefaultScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/drive",
	"https://www.googleapis.com/auth/userinfo.email",
}

// OAuthConfig holds the OAuth client registration.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	// Endpoint and APIEndpoint override Google's token endpoints and API
	// base URL (tests).
	Endpoint    *oauth2.Endpoint
	APIEndpoint string
}

// OAuthProvider handles OAuth operations for Google.
type OAuthProvider struct {
	config      *oauth2.Config
	apiEndpoint string
	httpClient  *http.Client
}

// NewOAuthProvider creates a new Google OAuth provider.
func NewOAuthProvider(cfg OAuthConfig) *OAuthProvider {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	endpoint := googleoauth.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	return &OAuthProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		apiEndpoint: cfg.APIEndpoint,
		httpClient:  &http.Client{Timeout: oauthTimeout},
	}
}

// AuthCodeURL builds the consent URL. Offline access with forced consent makes
// Google issue a refresh token on every grant.
func (p *OAuthProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange redeems an authorization code.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*domain.ProviderToken, error) {
	tok, err := p.config.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return nil, classifyTokenError("exchange code", err)
	}
	return toProviderToken(tok, ""), nil
}

// Refresh obtains a new access token from refreshToken.
func (p *OAuthProvider) Refresh(ctx context.Context, refreshToken string) (*domain.ProviderToken, error) {
	src := p.config.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, classifyTokenError("refresh token", err)
	}
	return toProviderToken(tok, refreshToken), nil
}

// AccountEmail fetches the email of the account owning accessToken.
func (p *OAuthProvider) AccountEmail(ctx context.Context, accessToken string) (string, error) {
	opts := []option.ClientOption{option.WithHTTPClient(bearerClient(accessToken, oauthTimeout))}
	if p.apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(p.apiEndpoint))
	}
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("create oauth2 service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get user info: %w", err)
	}
	if info.Email == "" {
		return "", errors.New("user info has no email")
	}
	return info.Email, nil
}

// ClientID returns the OAuth client ID.
func (p *OAuthProvider) ClientID() string { return p.config.ClientID }

// ClientSecret returns the OAuth client secret.
func (p *OAuthProvider) ClientSecret() string { return p.config.ClientSecret }

// clientContext makes the oauth2 package use our bounded HTTP client.
func (p *OAuthProvider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func toProviderToken(tok *oauth2.Token, previousRefresh string) *domain.ProviderToken {
	out := &domain.ProviderToken{AccessToken: tok.AccessToken}
	// The oauth2 package echoes the old refresh token when none was issued.
	if tok.RefreshToken != previousRefresh {
		out.RefreshToken = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		out.Expiry = &expiry
	}
	return out
}

func classifyTokenError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
		return fmt.Errorf("%s: %w: %s", op, driven.ErrInvalidGrant, re.ErrorDescription)
	}
	return fmt.Errorf("%s: %w", op, err)
}
