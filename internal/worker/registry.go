package worker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/claimqueue/internal/config"
)

var (
	ErrUnknownType      = errors.New("unknown job type")
	ErrDuplicateHandler = errors.New("handler already registered")
	ErrNilHandler       = errors.New("handler is nil")
)

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRetryable
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	}
	return "unknown"
}

// Outcome is what a handler reports back for one attempt.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

func Succeeded() Outcome { return Outcome{Kind: OutcomeSuccess} }

func Retry(reason string) Outcome { return Outcome{Kind: OutcomeRetryable, Reason: reason} }

func Fatal(reason string) Outcome { return Outcome{Kind: OutcomeFatal, Reason: reason} }

// Message is the view of a job a handler receives.
type Message struct {
	ID      uuid.UUID
	Type    config.JobType
	Payload []byte
	// Attempt is 1 on the first dispatch.
	Attempt int
}

// IdempotencyKey is stable across every attempt of the same job. Handlers
// pass it to remote services so duplicate executions collapse.
func (m Message) IdempotencyKey() string {
	return m.ID.String()
}

// Handler executes one job type. It may be called more than once for the
// same job and must tolerate that.
type Handler interface {
	Handle(ctx context.Context, msg Message) Outcome
}

type HandlerFunc func(ctx context.Context, msg Message) Outcome

func (f HandlerFunc) Handle(ctx context.Context, msg Message) Outcome {
	return f(ctx, msg)
}

// Registry maps job types to handlers. It is filled at startup and only
// read afterwards.
type Registry struct {
	mu       sync.RWMutex
	handlers map[config.JobType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[config.JobType]Handler)}
}

func (r *Registry) Register(jobType config.JobType, h Handler) error {
	if !jobType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownType, jobType)
	}
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNilHandler, jobType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[jobType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, jobType)
	}
	r.handlers[jobType] = h
	return nil
}

func (r *Registry) Lookup(jobType config.JobType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[jobType]
	return h, ok
}

// Types returns the registered types in declaration order.
func (r *Registry) Types() []config.JobType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]config.JobType, 0, len(r.handlers))
	for _, t := range config.AllowedJobTypes {
		if _, ok := r.handlers[t]; ok {
			types = append(types, t)
		}
	}
	return slices.Clip(types)
}
