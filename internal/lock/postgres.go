package lock

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	defaultPostgresLockTable     = "job_locks"
	defaultPostgresLockOperation = 3 * time.Second
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type PostgresConfig struct {
	Table            string
	Owner            string
	OperationTimeout time.Duration
}

func (c *PostgresConfig) normalize() {
	if strings.TrimSpace(c.Table) == "" {
		c.Table = defaultPostgresLockTable
	}
	if strings.TrimSpace(c.Owner) == "" {
		c.Owner = DefaultOwner()
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = defaultPostgresLockOperation
	}
}

// PostgresProvider stores one row per lock name in the queue store's own
// database, so no extra infrastructure is needed for a fleet.
type PostgresProvider struct {
	db     *sql.DB
	config PostgresConfig
}

var _ Provider = (*PostgresProvider)(nil)

// NewPostgresProvider uses db, typically the pool behind the gorm handle.
// The table is created by the goose migrations.
func NewPostgresProvider(db *sql.DB, cfg PostgresConfig) (*PostgresProvider, error) {
	if db == nil {
		return nil, lockError(ErrInvalidArgument, "db is required")
	}
	cfg.normalize()
	if !validTableName.MatchString(cfg.Table) {
		return nil, lockError(ErrInvalidArgument, fmt.Sprintf("invalid lock table name %q", cfg.Table))
	}
	return &PostgresProvider{db: db, config: cfg}, nil
}

// Acquire inserts the lock row, or takes over a row whose lease has
// expired at now.
func (p *PostgresProvider) Acquire(ctx context.Context, name string, now, until time.Time) (*Lease, bool, error) {
	if p == nil || p.db == nil {
		return nil, false, lockError(ErrNotInitialized, "postgres lock provider is not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, lockError(ErrInvalidArgument, "lock name is required")
	}
	if !until.After(now) {
		return nil, false, lockError(ErrInvalidArgument, "until must be after now")
	}

	token := newToken()
	opCtx, cancel := p.operationContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`
WITH upsert AS (
	INSERT INTO %s(name, token, lock_until, locked_at, locked_by)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT(name) DO UPDATE
	SET token = EXCLUDED.token,
	    lock_until = EXCLUDED.lock_until,
	    locked_at = EXCLUDED.locked_at,
	    locked_by = EXCLUDED.locked_by
	WHERE %s.lock_until <= $4
	RETURNING 1
)
SELECT EXISTS(SELECT 1 FROM upsert)
`, p.config.Table, p.config.Table)

	var acquired bool
	if err := p.db.QueryRowContext(opCtx, query, name, token, until, now, p.config.Owner).Scan(&acquired); err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", name, err)
	}
	if !acquired {
		return nil, false, nil
	}
	return &Lease{
		Name:       name,
		Token:      token,
		Owner:      p.config.Owner,
		AcquiredAt: now,
		Until:      until,
	}, true, nil
}

// Unlock moves lock_until to keepUntil. A keepUntil at or before now frees
// the lock for the next Acquire.
func (p *PostgresProvider) Unlock(ctx context.Context, lease *Lease, now, keepUntil time.Time) error {
	if p == nil || p.db == nil {
		return lockError(ErrNotInitialized, "postgres lock provider is not initialized")
	}
	if lease == nil || strings.TrimSpace(lease.Name) == "" || strings.TrimSpace(lease.Token) == "" {
		return lockError(ErrInvalidArgument, "lease name and token are required")
	}
	if keepUntil.Before(now) {
		keepUntil = now
	}

	opCtx, cancel := p.operationContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`UPDATE %s SET lock_until=$3 WHERE name=$1 AND token=$2`, p.config.Table)
	result, err := p.db.ExecContext(opCtx, query, lease.Name, lease.Token, keepUntil)
	if err != nil {
		return fmt.Errorf("unlock %s: %w", lease.Name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unlock %s: %w", lease.Name, err)
	}
	if affected == 0 {
		return lockError(ErrConflict, "lock release rejected")
	}
	return nil
}

// Close is a no-op; the pool belongs to the queue store.
func (p *PostgresProvider) Close() error { return nil }

func (p *PostgresProvider) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, p.config.OperationTimeout)
}
