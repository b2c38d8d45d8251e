package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joshu-sajeev/claimqueue/internal/clock"
	"go.uber.org/zap"
)

// Coordinator runs bodies under a named fleet-wide lock with a minimum
// and maximum hold.
type Coordinator struct {
	provider Provider
	clock    clock.Clock
	log      *zap.Logger
}

func NewCoordinator(provider Provider, clk clock.Clock, log *zap.Logger) *Coordinator {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		provider: provider,
		clock:    clk,
		log:      log.With(zap.String("component", "lock")),
	}
}

// WithLock runs body only if the lock called name could be taken. When the
// lock is busy body is skipped and WithLock returns (false, nil).
//
// Once acquired, the lock is held for at least minHold, even if body
// returns sooner, and expires on its own after maxHold if this process
// never releases it. maxHold does not cancel body.
func (c *Coordinator) WithLock(
	ctx context.Context,
	name string,
	minHold, maxHold time.Duration,
	body func(context.Context) error,
) (bool, error) {
	if c == nil || c.provider == nil {
		return false, lockError(ErrNotInitialized, "coordinator has no provider")
	}
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return false, lockError(ErrInvalidArgument, "lock name is required")
	case maxHold <= 0:
		return false, lockError(ErrInvalidArgument, "maxHold must be > 0")
	case minHold < 0:
		return false, lockError(ErrInvalidArgument, "minHold must be >= 0")
	case minHold > maxHold:
		return false, lockError(ErrInvalidArgument, "minHold must not exceed maxHold")
	case body == nil:
		return false, lockError(ErrInvalidArgument, "body is required")
	}

	now := c.clock.Now()
	lease, acquired, err := c.provider.Acquire(ctx, name, now, now.Add(maxHold))
	if err != nil {
		recordLockAttempt(name, "error")
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !acquired {
		recordLockAttempt(name, "busy")
		c.log.Debug("lock held elsewhere, skipping", zap.String("lock", name))
		return false, nil
	}
	recordLockAttempt(name, "acquired")

	defer c.release(ctx, lease, minHold)

	return true, body(ctx)
}

func (c *Coordinator) release(ctx context.Context, lease *Lease, minHold time.Duration) {
	now := c.clock.Now()
	keepUntil := lease.AcquiredAt.Add(minHold)
	if now.After(keepUntil) {
		keepUntil = now
	}

	// shutdown must not leave the lock held until maxHold
	err := c.provider.Unlock(context.WithoutCancel(ctx), lease, now, keepUntil)
	switch {
	case err == nil:
	case errors.Is(err, ErrConflict):
		c.log.Warn("lock expired before release",
			zap.String("lock", lease.Name),
			zap.Time("acquired_at", lease.AcquiredAt),
			zap.Time("until", lease.Until),
		)
	default:
		c.log.Error("release lock", zap.String("lock", lease.Name), zap.Error(err))
	}
}
