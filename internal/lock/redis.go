package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix           = "claimqueue:lock"
	defaultRedisOperationTimeout = 3 * time.Second
)

// unlockScript keeps the key for ARGV[2] more milliseconds, or deletes it
// when that is not positive. Either way only if the token still matches.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 0
end
if tonumber(ARGV[2]) > 0 then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return redis.call("DEL", KEYS[1])
`)

type RedisConfig struct {
	URL              string
	Prefix           string
	Owner            string
	OperationTimeout time.Duration
}

func (c *RedisConfig) normalize() {
	if strings.TrimSpace(c.Prefix) == "" {
		c.Prefix = defaultRedisPrefix
	}
	if strings.TrimSpace(c.Owner) == "" {
		c.Owner = DefaultOwner()
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = defaultRedisOperationTimeout
	}
}

// RedisProvider implements locks with SET NX PX. Expiry is measured by the
// Redis server, so only the hold durations derived from the caller's clock
// are sent, never absolute instants.
type RedisProvider struct {
	client *redis.Client
	config RedisConfig
}

var _ Provider = (*RedisProvider)(nil)

func NewRedisProvider(ctx context.Context, cfg RedisConfig) (*RedisProvider, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, lockError(ErrInvalidArgument, "redis url is required")
	}
	cfg.normalize()

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Join(lockError(ErrInvalidArgument, "parse redis url failed"), err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.OperationTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(lockError(ErrNotInitialized, "ping redis failed"), err)
	}

	return &RedisProvider{client: client, config: cfg}, nil
}

func (p *RedisProvider) Acquire(ctx context.Context, name string, now, until time.Time) (*Lease, bool, error) {
	if p == nil || p.client == nil {
		return nil, false, lockError(ErrNotInitialized, "redis lock provider is not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, lockError(ErrInvalidArgument, "lock name is required")
	}
	ttl := until.Sub(now)
	if ttl <= 0 {
		return nil, false, lockError(ErrInvalidArgument, "until must be after now")
	}

	token := newToken()
	opCtx, cancel := context.WithTimeout(ctx, p.config.OperationTimeout)
	defer cancel()

	acquired, err := p.client.SetNX(opCtx, p.fullKey(name), token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", name, err)
	}
	if !acquired {
		return nil, false, nil
	}

	return &Lease{Name: name, Token: token, Owner: p.config.Owner, AcquiredAt: now, Until: until}, true, nil
}

func (p *RedisProvider) Unlock(ctx context.Context, lease *Lease, now, keepUntil time.Time) error {
	if p == nil || p.client == nil {
		return lockError(ErrNotInitialized, "redis lock provider is not initialized")
	}
	if lease == nil || strings.TrimSpace(lease.Name) == "" || strings.TrimSpace(lease.Token) == "" {
		return lockError(ErrInvalidArgument, "lease name and token are required")
	}

	opCtx, cancel := context.WithTimeout(ctx, p.config.OperationTimeout)
	defer cancel()

	keepMillis := keepUntil.Sub(now).Milliseconds()
	result, err := unlockScript.Run(opCtx, p.client, []string{p.fullKey(lease.Name)}, lease.Token, keepMillis).Int64()
	if err != nil {
		return fmt.Errorf("unlock %s: %w", lease.Name, err)
	}
	if result == 0 {
		return lockError(ErrConflict, "lock release rejected")
	}
	return nil
}

func (p *RedisProvider) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *RedisProvider) fullKey(name string) string {
	return p.config.Prefix + ":" + name
}
