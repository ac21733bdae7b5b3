package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
	"github.com/custodia-labs/drive-relay/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PendingAuthorizationStore = (*PendingAuthorizationStore)(nil)

const (
	pendingStatePrefix = "relay:pending:state:"
	pendingKeyPrefix   = "relay:pending:key:"

	// DefaultPendingTTL matches the janitor's default age limit.
	DefaultPendingTTL = 24 * time.Hour
)

// PendingAuthorizationStore implements driven.PendingAuthorizationStore using Redis.
// Records live under their state with a TTL; a second key per context key
// points at the latest state, so each context key has at most one record.
type PendingAuthorizationStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPendingAuthorizationStore creates a Redis-backed store. ttl <= 0 uses DefaultPendingTTL.
func NewPendingAuthorizationStore(client *redis.Client, ttl time.Duration) *PendingAuthorizationStore {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &PendingAuthorizationStore{client: client, ttl: ttl}
}

// saveScript swaps the context key's pointer to the new state and drops the
// record it pointed at.
// KEYS: state key, index key. ARGV: record, ttl ms, state prefix, state.
var saveScript = redis.NewScript(`
	local previous = redis.call("get", KEYS[2])
	if previous and previous ~= ARGV[4] then
		redis.call("del", ARGV[3] .. previous)
	end
	redis.call("set", KEYS[1], ARGV[1], "px", ARGV[2])
	redis.call("set", KEYS[2], ARGV[4], "px", ARGV[2])
	return 1
`)

// deleteScript removes a record and its index if the index still points at it.
// KEYS: state key, index key. ARGV: state.
var deleteScript = redis.NewScript(`
	redis.call("del", KEYS[1])
	if redis.call("get", KEYS[2]) == ARGV[1] then
		redis.call("del", KEYS[2])
	end
	return 1
`)

// Save stores p and supersedes any earlier record for the same context key.
func (s *PendingAuthorizationStore) Save(ctx context.Context, p *domain.PendingAuthorization) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pending authorization: %w", err)
	}

	keys := []string{pendingStatePrefix + p.State, pendingKeyPrefix + p.Key.String()}
	if err := saveScript.Run(ctx, s.client, keys, data, s.ttl.Milliseconds(), pendingStatePrefix, p.State).Err(); err != nil {
		return fmt.Errorf("save pending authorization: %w", err)
	}
	return nil
}

// Get retrieves a pending authorization by state.
func (s *PendingAuthorizationStore) Get(ctx context.Context, state string) (*domain.PendingAuthorization, error) {
	data, err := s.client.Get(ctx, pendingStatePrefix+state).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pending authorization: %w", err)
	}

	var p domain.PendingAuthorization
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal pending authorization: %w", err)
	}
	return &p, nil
}

// Latest follows the context key's index to its record.
func (s *PendingAuthorizationStore) Latest(ctx context.Context, key domain.ContextKey) (*domain.PendingAuthorization, error) {
	state, err := s.client.Get(ctx, pendingKeyPrefix+key.String()).Result()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest pending authorization: %w", err)
	}
	return s.Get(ctx, state)
}

// Delete removes a record by state. Unknown states are ignored.
func (s *PendingAuthorizationStore) Delete(ctx context.Context, state string) error {
	p, err := s.Get(ctx, state)
	if err == domain.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	keys := []string{pendingStatePrefix + state, pendingKeyPrefix + p.Key.String()}
	if err := deleteScript.Run(ctx, s.client, keys, state).Err(); err != nil {
		return fmt.Errorf("delete pending authorization: %w", err)
	}
	return nil
}

// Cleanup removes records created before olderThan. Redis already expires
// records after the store TTL; this catches records when the janitor TTL is shorter.
func (s *PendingAuthorizationStore) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	var removed int64

	iter := s.client.Scan(ctx, 0, pendingStatePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		state := iter.Val()[len(pendingStatePrefix):]
		p, err := s.Get(ctx, state)
		if err == domain.ErrNotFound {
			continue
		}
		if err != nil {
			return removed, err
		}
		if !p.CreatedAt.Before(olderThan) {
			continue
		}
		if err := s.Delete(ctx, state); err != nil {
			return removed, err
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan pending authorizations: %w", err)
	}
	return removed, nil
}
