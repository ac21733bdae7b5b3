package domain

import "time"

// AuthorizationCodePrefix is the fixed prefix of Google authorization codes.
// The chat layer uses it to tell pasted codes apart from ordinary text.
const AuthorizationCodePrefix = "4/"

// PendingAuthorization is an in-flight /connect that has not been completed yet.
// It is keyed by State for the HTTP callback and by Key (most recent first)
// for codes pasted back into the chat, which carry no state.
type PendingAuthorization struct {
	State     string     `json:"state"`
	Key       ContextKey `json:"context_key"`
	CreatedAt time.Time  `json:"created_at"`
}
