package domain

import "errors"

// Generic domain errors
var (
	// ErrNotFound indicates the requested record was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoSender indicates an inbound event carries no user identity
	ErrNoSender = errors.New("event has no sender")
)

// Connection lifecycle errors. Services only let these cross their boundary;
// every failure of an external capability is wrapped into exactly one of them.
var (
	// ErrNoPendingAuthorization indicates a code arrived without a matching /connect
	ErrNoPendingAuthorization = errors.New("no pending authorization")

	// ErrExchangeFailed indicates the authorization code was rejected or could not be redeemed
	ErrExchangeFailed = errors.New("authorization code exchange failed")

	// ErrRefreshDenied indicates the refresh token is invalid or revoked (terminal)
	ErrRefreshDenied = errors.New("refresh token denied")

	// ErrRefreshUnavailable indicates refresh failed for a transient reason (retryable)
	ErrRefreshUnavailable = errors.New("token refresh unavailable")

	// ErrNotConnected indicates no credential exists for the context key
	ErrNotConnected = errors.New("not connected")

	// ErrTooLarge indicates the file exceeds MaxUploadSize
	ErrTooLarge = errors.New("file too large")

	// ErrSourceFetchFailed indicates the file could not be downloaded from the chat transport
	ErrSourceFetchFailed = errors.New("source fetch failed")

	// ErrDeliveryFailed indicates the storage provider rejected or failed the operation
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrReauthorizationRequired indicates the provider revoked access mid-operation
	ErrReauthorizationRequired = errors.New("reauthorization required")
)
