package domain

import (
	"strconv"
	"strings"
)

// ContextKey identifies one connection slot: a user inside a conversation,
// optionally scoped to a sub-thread (forum topic) of that conversation.
//
// ThreadID is nil when the conversation has no sub-thread. A nil ThreadID is
// a distinct key value and must never be coerced to 0.
type ContextKey struct {
	UserID   int64  `json:"user_id"`
	ChatID   int64  `json:"chat_id"`
	ThreadID *int64 `json:"thread_id,omitempty"`
}

// NewContextKey builds a key. threadID may be nil.
func NewContextKey(userID, chatID int64, threadID *int64) ContextKey {
	key := ContextKey{UserID: userID, ChatID: chatID}
	if threadID != nil {
		t := *threadID
		key.ThreadID = &t
	}
	return key
}

// Equal compares two keys with null-aware thread equality.
func (k ContextKey) Equal(other ContextKey) bool {
	if k.UserID != other.UserID || k.ChatID != other.ChatID {
		return false
	}
	if k.ThreadID == nil || other.ThreadID == nil {
		return k.ThreadID == nil && other.ThreadID == nil
	}
	return *k.ThreadID == *other.ThreadID
}

// HasThread reports whether the key is scoped to a sub-thread.
func (k ContextKey) HasThread() bool {
	return k.ThreadID != nil
}

// String returns a stable textual form, used for lock names, cache keys and logs.
// Format: "<user>:<chat>:<thread>" with "-" standing for an absent thread.
func (k ContextKey) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(k.UserID, 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(k.ChatID, 10))
	b.WriteByte(':')
	if k.ThreadID == nil {
		b.WriteByte('-')
	} else {
		b.WriteString(strconv.FormatInt(*k.ThreadID, 10))
	}
	return b.String()
}

// InboundEvent is the transport-neutral view of a chat event that the core
// needs in order to resolve a connection slot.
type InboundEvent struct {
	// SenderID is nil for events without a human sender (channel posts, service messages).
	SenderID *int64
	ChatID   int64
	ThreadID *int64
}

// ResolveContextKey derives the connection slot for an inbound event.
// Events without a sender yield ErrNoSender and are ignored by callers.
func ResolveContextKey(ev InboundEvent) (ContextKey, error) {
	if ev.SenderID == nil {
		return ContextKey{}, ErrNoSender
	}
	return NewContextKey(*ev.SenderID, ev.ChatID, ev.ThreadID), nil
}
