package lock

import (
	"context"
	"time"
)

// Lease is a held lock. Token identifies this holder so a late unlock
// cannot clobber a lease someone else acquired after expiry.
type Lease struct {
	Name       string
	Token      string
	Owner      string
	AcquiredAt time.Time
	Until      time.Time
}

// Provider is a fleet-wide mutual exclusion store. Times come from the
// caller's clock so every backend agrees on what "now" means.
type Provider interface {
	// Acquire takes name until the given instant if it is free or its
	// previous lease has expired at now. A held lock is not an error.
	Acquire(ctx context.Context, name string, now, until time.Time) (*Lease, bool, error)
	// Unlock keeps the lease until keepUntil, or frees it when keepUntil
	// is not after now. A token mismatch returns ErrConflict.
	Unlock(ctx context.Context, lease *Lease, now, keepUntil time.Time) error
	Close() error
}
