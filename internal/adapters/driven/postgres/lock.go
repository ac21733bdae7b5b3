package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/custodia-labs/drive-relay/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*AdvisoryLock)(nil)

const unlockTimeout = 5 * time.Second

// AdvisoryLock implements DistributedLock using PostgreSQL session advisory locks.
//
// Advisory locks belong to a database session, so each held lock pins one
// pooled connection until Release. They have no TTL: the ttl argument is
// ignored and Extend is a no-op. A lost connection releases the lock.
//
// Used when REDIS_URL is not configured.
type AdvisoryLock struct {
	db *DB

	mu   sync.Mutex
	held map[string]*sql.Conn
}

// NewAdvisoryLock creates a new PostgreSQL advisory lock adapter.
func NewAdvisoryLock(db *DB) *AdvisoryLock {
	return &AdvisoryLock{
		db:   db,
		held: make(map[string]*sql.Conn),
	}
}

// hashLockName maps a lock name to the 64-bit advisory lock key (FNV-1a).
func hashLockName(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte("relay:lock:" + name))
	return int64(h.Sum64())
}

// Acquire tries pg_try_advisory_lock on a dedicated connection without blocking.
func (l *AdvisoryLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Session locks are re-entrant; refuse instead so callers see exclusion
	// within this process too.
	if _, ok := l.held[name]; ok {
		return false, nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", hashLockName(name)).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}

	l.held[name] = conn
	return true, nil
}

// Release unlocks on the connection that took the lock and returns it to the pool.
// Safe to call when the lock is not held.
//
// The unlock runs even when ctx is already cancelled. If it still fails the
// connection is discarded, which ends the session and frees the lock, instead
// of going back to the pool with the lock attached.
func (l *AdvisoryLock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	conn, ok := l.held[name]
	delete(l.held, name)
	l.mu.Unlock()

	if !ok {
		return nil
	}
	defer conn.Close()

	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
	defer cancel()

	var released bool
	err := conn.QueryRowContext(uctx, "SELECT pg_advisory_unlock($1)", hashLockName(name)).Scan(&released)
	if err == nil && released {
		return nil
	}
	if err == nil {
		err = errors.New("advisory lock was not held by this session")
	}
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	return fmt.Errorf("release lock %s: %w", name, err)
}

// Extend is a no-op: advisory locks do not expire.
func (l *AdvisoryLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	return nil
}

// Ping checks if the PostgreSQL backend is healthy.
func (l *AdvisoryLock) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}
