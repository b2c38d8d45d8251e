package config

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sethvargo/go-envconfig"
)

// CronParser accepts six-field expressions with a leading seconds field
// plus descriptors such as @every 30s.
var CronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

var allowedLockBackends = []string{"postgres", "redis", "memory"}

type Config struct {
	Processor Processor
	Remote    Remote
	Failure   Failure
	Log       Log
	APIAddr   string `env:"API_ADDR,default=:8080"`
}

// Processor holds scheduling and retry settings for the message processor.
type Processor struct {
	DefaultSchedule   string            `env:"MESSAGE_PROCESSOR_DEFAULT_SCHEDULE,default=*/30 * * * * *"`
	OffsetSchedule    string            `env:"MESSAGE_PROCESSOR_OFFSET_SCHEDULE,default=5/30 * * * * *"`
	Schedules         map[string]string `env:"MESSAGE_PROCESSOR_SCHEDULES, delimiter=;"`
	MinLockTime       ISODuration       `env:"MESSAGE_PROCESSOR_DEFAULT_MIN_LOCK_TIME,default=PT10S"`
	MaxLockTime       ISODuration       `env:"MESSAGE_PROCESSOR_DEFAULT_MAX_LOCK_TIME,default=PT30M"`
	BatchSize         int               `env:"MESSAGE_PROCESSOR_BATCH_SIZE,default=100"`
	MaxAttempts       int               `env:"MESSAGE_PROCESSOR_MAX_ATTEMPTS,default=5"`
	MaxAttemptsByType map[string]int    `env:"MESSAGE_PROCESSOR_MAX_ATTEMPTS_BY_TYPE"`
	InitialBackoff    time.Duration     `env:"MESSAGE_PROCESSOR_INITIAL_BACKOFF,default=30s"`
	MaxBackoff        time.Duration     `env:"MESSAGE_PROCESSOR_MAX_BACKOFF,default=1h"`
	LockBackend       string            `env:"LOCK_BACKEND,default=postgres"`
	RedisURL          string            `env:"REDIS_URL"`
}

type Remote struct {
	CardServiceURL      string        `env:"CARD_SERVICE_URL,default=http://localhost:8110"`
	PaymentServiceURL   string        `env:"PAYMENT_SERVICE_URL,default=http://localhost:8120"`
	NotifyServiceURL    string        `env:"NOTIFY_SERVICE_URL,default=http://localhost:8130"`
	ReportingServiceURL string        `env:"REPORTING_SERVICE_URL,default=http://localhost:8140"`
	Timeout             time.Duration `env:"REMOTE_TIMEOUT,default=10s"`
}

type Failure struct {
	AMQPURL      string `env:"FAILURE_AMQP_URL"`
	AMQPExchange string `env:"FAILURE_AMQP_EXCHANGE,default=claimqueue.failures"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
}

// to help with testing
var envProcess = envconfig.Process

func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// ScheduleFor returns the cron expression for a job type: an explicit
// override first, then the offset or default group.
func (p Processor) ScheduleFor(t JobType) string {
	if expr, ok := p.Schedules[string(t)]; ok && strings.TrimSpace(expr) != "" {
		return strings.TrimSpace(expr)
	}
	if t.Offset() {
		return p.OffsetSchedule
	}
	return p.DefaultSchedule
}

// MaxAttemptsFor returns the attempt cap for a job type. Zero or less
// means the type is retried without limit.
func (p Processor) MaxAttemptsFor(t JobType) int {
	if n, ok := p.MaxAttemptsByType[string(t)]; ok {
		return n
	}
	return p.MaxAttempts
}

func (c *Config) validate() error {
	var errors []string
	p := c.Processor

	if _, err := CronParser.Parse(p.DefaultSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("MESSAGE_PROCESSOR_DEFAULT_SCHEDULE is invalid: %v", err))
	}
	if _, err := CronParser.Parse(p.OffsetSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("MESSAGE_PROCESSOR_OFFSET_SCHEDULE is invalid: %v", err))
	}
	for k, expr := range p.Schedules {
		if !JobType(k).Valid() {
			errors = append(errors, fmt.Sprintf("MESSAGE_PROCESSOR_SCHEDULES has unknown job type %q", k))
			continue
		}
		if _, err := CronParser.Parse(strings.TrimSpace(expr)); err != nil {
			errors = append(errors, fmt.Sprintf("MESSAGE_PROCESSOR_SCHEDULES[%s] is invalid: %v", k, err))
		}
	}
	for k := range p.MaxAttemptsByType {
		if !JobType(k).Valid() {
			errors = append(errors, fmt.Sprintf("MESSAGE_PROCESSOR_MAX_ATTEMPTS_BY_TYPE has unknown job type %q", k))
		}
	}

	if p.MaxLockTime.Duration() <= 0 {
		errors = append(errors, "MESSAGE_PROCESSOR_DEFAULT_MAX_LOCK_TIME must be positive")
	}
	if p.MinLockTime.Duration() < 0 {
		errors = append(errors, "MESSAGE_PROCESSOR_DEFAULT_MIN_LOCK_TIME must be non-negative")
	}
	if p.MinLockTime.Duration() > p.MaxLockTime.Duration() {
		errors = append(errors, "MESSAGE_PROCESSOR_DEFAULT_MIN_LOCK_TIME must not exceed MESSAGE_PROCESSOR_DEFAULT_MAX_LOCK_TIME")
	}

	if p.BatchSize <= 0 {
		errors = append(errors, "MESSAGE_PROCESSOR_BATCH_SIZE must be positive")
	}
	if p.InitialBackoff <= 0 {
		errors = append(errors, "MESSAGE_PROCESSOR_INITIAL_BACKOFF must be positive")
	}
	if p.MaxBackoff < p.InitialBackoff {
		errors = append(errors, "MESSAGE_PROCESSOR_MAX_BACKOFF must not be less than MESSAGE_PROCESSOR_INITIAL_BACKOFF")
	}

	if !slices.Contains(allowedLockBackends, p.LockBackend) {
		errors = append(errors, fmt.Sprintf("LOCK_BACKEND must be one of %s", strings.Join(allowedLockBackends, ", ")))
	}
	if p.LockBackend == "redis" && strings.TrimSpace(p.RedisURL) == "" {
		errors = append(errors, "REDIS_URL is required when LOCK_BACKEND=redis")
	}

	if c.Remote.Timeout <= 0 {
		errors = append(errors, "REMOTE_TIMEOUT must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}
