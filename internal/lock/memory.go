package lock

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryProvider keeps leases in process memory. Coordinators sharing one
// MemoryProvider exclude each other, which is enough for a single instance
// and for tests.
type MemoryProvider struct {
	mu     sync.Mutex
	owner  string
	leases map[string]Lease
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{owner: DefaultOwner(), leases: make(map[string]Lease)}
}

var _ Provider = (*MemoryProvider)(nil)

func (p *MemoryProvider) Acquire(_ context.Context, name string, now, until time.Time) (*Lease, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, lockError(ErrInvalidArgument, "lock name is required")
	}
	if !until.After(now) {
		return nil, false, lockError(ErrInvalidArgument, "until must be after now")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if held, ok := p.leases[name]; ok && held.Until.After(now) {
		return nil, false, nil
	}

	lease := Lease{Name: name, Token: newToken(), Owner: p.owner, AcquiredAt: now, Until: until}
	p.leases[name] = lease
	return &lease, true, nil
}

func (p *MemoryProvider) Unlock(_ context.Context, lease *Lease, now, keepUntil time.Time) error {
	if lease == nil {
		return lockError(ErrInvalidArgument, "lease is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	held, ok := p.leases[lease.Name]
	if !ok || held.Token != lease.Token {
		return lockError(ErrConflict, "lock release rejected")
	}

	if !keepUntil.After(now) {
		delete(p.leases, lease.Name)
		return nil
	}
	held.Until = keepUntil
	p.leases[lease.Name] = held
	return nil
}

func (p *MemoryProvider) Close() error { return nil }
