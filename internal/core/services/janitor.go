package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/drive-relay/internal/core/ports/driven"
)

// janitorLockName is the distributed lock held while sweeping.
const janitorLockName = "pending-authorization-sweep"

// Janitor periodically removes abandoned pending authorizations.
//
// For multi-instance deployments, configure a DistributedLock so only one
// instance sweeps per interval.
type Janitor struct {
	store  driven.PendingAuthorizationStore
	lock   driven.DistributedLock
	logger *slog.Logger
	now    func() time.Time

	// Internal state
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	interval time.Duration
	ttl      time.Duration
	lockTTL  time.Duration
}

// JanitorConfig holds configuration for the janitor.
type JanitorConfig struct {
	Store    driven.PendingAuthorizationStore
	Lock     driven.DistributedLock // Optional: distributed lock for multi-instance coordination
	Logger   *slog.Logger
	Interval time.Duration // How often to sweep (default: 1h)
	TTL      time.Duration // Age after which a pending authorization is abandoned (default: 24h)
	LockTTL  time.Duration // TTL for the distributed lock (default: 5m)
	Now      func() time.Time
}

// NewJanitor creates a new janitor.
func NewJanitor(cfg JanitorConfig) *Janitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = time.Hour
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 5 * time.Minute
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Janitor{
		store:    cfg.Store,
		lock:     cfg.Lock,
		logger:   logger,
		now:      now,
		interval: interval,
		ttl:      ttl,
		lockTTL:  lockTTL,
	}
}

// Start begins the sweep loop. It runs until Stop is called or ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	j.logger.Info("janitor starting", "interval", j.interval, "ttl", j.ttl)

	go j.run(ctx)
}

// Stop stops the loop and waits for an in-progress sweep to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	close(j.stopCh)
	j.mu.Unlock()

	<-j.doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()

	j.logger.Info("janitor stopped")
}

func (j *Janitor) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run immediately on start
	if _, err := j.Sweep(ctx); err != nil {
		j.logger.Error("pending authorization sweep failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopCh:
			return
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil {
				j.logger.Error("pending authorization sweep failed", "error", err)
			}
		}
	}
}

// Sweep removes pending authorizations older than the TTL once and returns
// how many were removed. When the lock is held elsewhere it removes nothing.
func (j *Janitor) Sweep(ctx context.Context) (int64, error) {
	if j.lock != nil {
		acquired, err := j.lock.Acquire(ctx, janitorLockName, j.lockTTL)
		if err != nil {
			return 0, err
		}
		if !acquired {
			j.logger.Debug("sweep lock held by another instance, skipping cycle")
			return 0, nil
		}
		defer func() {
			if err := j.lock.Release(ctx, janitorLockName); err != nil {
				j.logger.Warn("failed to release sweep lock", "error", err)
			}
		}()
	}

	removed, err := j.store.Cleanup(ctx, j.now().Add(-j.ttl))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		j.logger.Info("removed abandoned pending authorizations", "count", removed)
	}
	return removed, nil
}
