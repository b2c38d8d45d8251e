package processor

import (
	"time"

	"github.com/joshu-sajeev/claimqueue/internal/config"
)

// Backoff computes the delay before the next attempt, given the number of
// attempts made so far.
type Backoff interface {
	Delay(attempts int) time.Duration
}

// Exponential doubles the delay after each attempt, starting at Initial
// and never exceeding Max.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

func (e Exponential) Delay(attempts int) time.Duration {
	initial := e.Initial
	if initial <= 0 {
		initial = time.Second
	}
	limit := e.Max
	if limit < initial {
		limit = initial
	}
	if attempts < 1 {
		attempts = 1
	}

	d := initial
	for i := 1; i < attempts; i++ {
		if d > limit/2 {
			return limit
		}
		d *= 2
	}
	return min(d, limit)
}

// Constant waits the same amount after every attempt.
type Constant time.Duration

func (c Constant) Delay(int) time.Duration {
	if c <= 0 {
		return time.Second
	}
	return time.Duration(c)
}

// RetryPolicy bounds how often a job type is attempted. MaxAttempts <= 0
// retries forever.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     Backoff
}

func (p RetryPolicy) exhausted(attempts int) bool {
	return p.MaxAttempts > 0 && attempts >= p.MaxAttempts
}

// PoliciesFromConfig builds the default policy and the per-type overrides.
func PoliciesFromConfig(cfg config.Processor) (RetryPolicy, map[config.JobType]RetryPolicy) {
	backoff := Exponential{Initial: cfg.InitialBackoff, Max: cfg.MaxBackoff}
	def := RetryPolicy{MaxAttempts: cfg.MaxAttempts, Backoff: backoff}

	overrides := make(map[config.JobType]RetryPolicy, len(cfg.MaxAttemptsByType))
	for t := range cfg.MaxAttemptsByType {
		jt := config.JobType(t)
		overrides[jt] = RetryPolicy{MaxAttempts: cfg.MaxAttemptsFor(jt), Backoff: backoff}
	}
	return def, overrides
}
