package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joshu-sajeev/claimqueue/internal/clock"
	"github.com/joshu-sajeev/claimqueue/internal/config"
	"github.com/joshu-sajeev/claimqueue/internal/failure"
	"github.com/joshu-sajeev/claimqueue/internal/models"
	"github.com/joshu-sajeev/claimqueue/internal/worker"
	"go.uber.org/zap"
)

// Store is the part of the queue store the processor needs. SaveFailure
// persists the FAILED status together with the job's audit row.
type Store interface {
	FetchDue(ctx context.Context, jobType config.JobType, now time.Time, limit int) ([]models.Job, error)
	SaveOutcome(ctx context.Context, job *models.Job) error
	SaveFailure(ctx context.Context, job *models.Job, report *models.FailureReport) error
}

type FailureReporter interface {
	Report(ctx context.Context, r failure.Report) error
}

type Options struct {
	BatchSize int
	Default   RetryPolicy
	Policies  map[config.JobType]RetryPolicy
}

// Result counts what one tick did.
type Result struct {
	Selected  int
	Completed int
	Retried   int
	Failed    int
}

// Processor runs one batch of due jobs of a single type. Callers hold the
// type's fleet-wide lock while it runs.
type Processor struct {
	store    Store
	registry *worker.Registry
	reporter FailureReporter
	clock    clock.Clock
	log      *zap.Logger
	opts     Options
}

func New(store Store, registry *worker.Registry, reporter FailureReporter, clk clock.Clock, log *zap.Logger, opts Options) *Processor {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Default.Backoff == nil {
		opts.Default.Backoff = Exponential{Initial: 30 * time.Second, Max: time.Hour}
	}
	return &Processor{
		store:    store,
		registry: registry,
		reporter: reporter,
		clock:    clk,
		log:      log.With(zap.String("component", "processor")),
		opts:     opts,
	}
}

func (p *Processor) policy(t config.JobType) RetryPolicy {
	pol, ok := p.opts.Policies[t]
	if !ok {
		return p.opts.Default
	}
	if pol.Backoff == nil {
		pol.Backoff = p.opts.Default.Backoff
	}
	return pol
}

// ProcessType selects up to BatchSize due jobs of jobType, oldest first,
// and runs each one to its next state. A store error stops the batch;
// jobs not yet saved stay PENDING and are picked up by a later tick.
func (p *Processor) ProcessType(ctx context.Context, jobType config.JobType) (Result, error) {
	var res Result
	log := p.log.With(zap.String("type", string(jobType)))

	jobs, err := p.store.FetchDue(ctx, jobType, p.clock.Now(), p.opts.BatchSize)
	if err != nil {
		return res, fmt.Errorf("process %s: %w", jobType, err)
	}
	res.Selected = len(jobs)
	batchSize.WithLabelValues(string(jobType)).Observe(float64(len(jobs)))

	for i := range jobs {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		j := &jobs[i]
		status, err := p.processJob(ctx, log, j)
		if errors.Is(err, models.ErrJobNotPending) {
			log.Warn("job already finished elsewhere, skipping", zap.String("job_id", j.ID.String()))
			continue
		}
		if err != nil {
			return res, fmt.Errorf("process %s: %w", jobType, err)
		}

		switch status {
		case config.JobStatusCompleted:
			res.Completed++
		case config.JobStatusFailed:
			res.Failed++
		default:
			res.Retried++
		}
	}

	if res.Selected > 0 {
		log.Info("batch processed",
			zap.Int("selected", res.Selected),
			zap.Int("completed", res.Completed),
			zap.Int("retried", res.Retried),
			zap.Int("failed", res.Failed),
		)
	}
	return res, nil
}

func (p *Processor) processJob(ctx context.Context, log *zap.Logger, j *models.Job) (config.JobStatus, error) {
	log = log.With(zap.String("job_id", j.ID.String()), zap.Int("attempt", j.Attempts+1))

	out := p.dispatch(ctx, j)

	j.Attempts++
	now := p.clock.Now()
	pol := p.policy(j.Type)

	switch out.Kind {
	case worker.OutcomeSuccess:
		j.Status = config.JobStatusCompleted
		j.LastError = ""
	case worker.OutcomeRetryable:
		j.LastError = out.Reason
		if pol.exhausted(j.Attempts) {
			j.Status = config.JobStatusFailed
			break
		}
		j.NotBefore = now.Add(pol.Backoff.Delay(j.Attempts))
	default:
		j.Status = config.JobStatusFailed
		j.LastError = out.Reason
	}

	// the handler already ran; record that even if shutdown has begun
	ctx = context.WithoutCancel(ctx)
	if err := p.save(ctx, j, now); err != nil {
		return "", err
	}

	switch j.Status {
	case config.JobStatusCompleted:
		jobsProcessedTotal.WithLabelValues(string(j.Type), "completed").Inc()
		log.Debug("job completed")
	case config.JobStatusFailed:
		jobsProcessedTotal.WithLabelValues(string(j.Type), "failed").Inc()
		log.Warn("job failed", zap.String("reason", j.LastError))
		p.report(ctx, log, j, now)
	default:
		jobsProcessedTotal.WithLabelValues(string(j.Type), "retried").Inc()
		log.Info("job will be retried", zap.String("reason", j.LastError), zap.Time("not_before", j.NotBefore))
	}
	return j.Status, nil
}

func (p *Processor) save(ctx context.Context, j *models.Job, now time.Time) error {
	if j.Status != config.JobStatusFailed {
		return p.store.SaveOutcome(ctx, j)
	}
	return p.store.SaveFailure(ctx, j, &models.FailureReport{
		JobID:      j.ID,
		Type:       j.Type,
		Attempts:   j.Attempts,
		Reason:     j.LastError,
		ReportedAt: now,
	})
}

// dispatch runs the handler for j. A missing handler is fatal; a panic is
// treated as a transient failure.
func (p *Processor) dispatch(ctx context.Context, j *models.Job) (out worker.Outcome) {
	h, ok := p.registry.Lookup(j.Type)
	if !ok {
		return worker.Fatal(fmt.Sprintf("no handler registered for %s", j.Type))
	}

	start := time.Now()
	defer func() {
		jobDuration.WithLabelValues(string(j.Type)).Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			out = worker.Retry(fmt.Sprintf("handler panicked: %v", r))
		}
	}()

	return h.Handle(ctx, worker.Message{
		ID:      j.ID,
		Type:    j.Type,
		Payload: j.Payload,
		Attempt: j.Attempts + 1,
	})
}

func (p *Processor) report(ctx context.Context, log *zap.Logger, j *models.Job, now time.Time) {
	if p.reporter == nil {
		return
	}
	err := p.reporter.Report(ctx, failure.Report{
		JobID:     j.ID,
		Type:      j.Type,
		Attempts:  j.Attempts,
		Reason:    j.LastError,
		Timestamp: now,
	})
	if err != nil {
		log.Error("failure report not delivered", zap.Error(err))
	}
}
