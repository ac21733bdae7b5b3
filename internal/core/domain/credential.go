package domain

import "time"

// RefreshBuffer is how long before the real expiry an access token is
// already treated as expired. It keeps a token from lapsing in the middle of
// a multi-step provider call.
const RefreshBuffer = 5 * time.Minute

// Credential is the established connection for one context key.
// At most one Credential exists per ContextKey.
type Credential struct {
	ID           string     `json:"id"`
	Key          ContextKey `json:"context_key"`
	AccountEmail string     `json:"account_email"`

	// Token material. Never serialize.
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`

	// TokenExpiry is nil when the provider did not report one.
	TokenExpiry *time.Time `json:"token_expiry,omitempty"`

	// FolderID is empty when uploads go to the drive root.
	FolderID string `json:"folder_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate it without touching the original.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Key = NewContextKey(c.Key.UserID, c.Key.ChatID, c.Key.ThreadID)
	if c.TokenExpiry != nil {
		t := *c.TokenExpiry
		cp.TokenExpiry = &t
	}
	return &cp
}

// HasFolder reports whether an upload folder was selected.
func (c *Credential) HasFolder() bool {
	return c.FolderID != ""
}

// TokenExpired reports whether an access token with the given expiry must be
// refreshed at time now. A missing expiry always counts as expired.
func TokenExpired(expiry *time.Time, now time.Time) bool {
	if expiry == nil {
		return true
	}
	return !now.Before(expiry.Add(-RefreshBuffer))
}

// ProviderToken is what the identity provider returns from a code exchange or
// a refresh. RefreshToken is empty on refresh responses that do not rotate it.
type ProviderToken struct {
	AccessToken  string
	RefreshToken string
	Expiry       *time.Time
}

// OAuthCredentials is the plain credential record handed to the storage
// provider. It carries no behaviour and never refreshes itself.
type OAuthCredentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       *time.Time
	ClientID     string
	ClientSecret string
}
