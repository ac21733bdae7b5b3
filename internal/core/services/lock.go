package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/drive-relay/internal/core/ports/driven"
)

const (
	defaultLockTTL        = 30 * time.Second
	defaultLockWait       = 15 * time.Second
	defaultRefreshTimeout = 30 * time.Second
	lockPollEvery         = 200 * time.Millisecond
)

// acquireOrWait takes a named lock, polling while another holder has it.
// Between polls it calls settled (when non-nil); if settled reports true the
// holder has already done the work and acquireOrWait returns false without
// taking the lock. It gives up with an error after wait.
func acquireOrWait(
	ctx context.Context,
	lock driven.DistributedLock,
	name string,
	ttl, wait time.Duration,
	settled func(context.Context) bool,
) (bool, error) {
	deadline := time.Now().Add(wait)
	for {
		acquired, err := lock.Acquire(ctx, name, ttl)
		if err != nil {
			return false, fmt.Errorf("acquire %s: %w", name, err)
		}
		if acquired {
			return true, nil
		}

		if time.Now().After(deadline) {
			return false, fmt.Errorf("lock %s still held after %s", name, wait)
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(lockPollEvery):
		}

		if settled != nil && settled(ctx) {
			return false, nil
		}
	}
}
