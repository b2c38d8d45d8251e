package failure

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/claimqueue/internal/config"
	"go.uber.org/zap"
)

// Report describes a job that reached FAILED.
type Report struct {
	JobID     uuid.UUID      `json:"job_id"`
	Type      config.JobType `json:"type"`
	Attempts  int            `json:"attempt_count"`
	Reason    string         `json:"reason"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sink is one destination for failure reports.
type Sink interface {
	Record(ctx context.Context, r Report) error
}

type SinkFunc func(ctx context.Context, r Report) error

func (f SinkFunc) Record(ctx context.Context, r Report) error {
	return f(ctx, r)
}

// Reporter delivers every report to all of its sinks. One sink failing
// does not stop the others.
type Reporter struct {
	sinks []Sink
	log   *zap.Logger
}

func NewReporter(log *zap.Logger, sinks ...Sink) *Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reporter{
		sinks: sinks,
		log:   log.With(zap.String("component", "failure_reporter")),
	}
}

func (r *Reporter) Report(ctx context.Context, rep Report) error {
	failuresTotal.WithLabelValues(string(rep.Type)).Inc()

	var errs []error
	for _, s := range r.sinks {
		if err := s.Record(ctx, rep); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		r.log.Warn("failure report not delivered to every sink",
			zap.String("job_id", rep.JobID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}
