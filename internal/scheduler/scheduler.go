package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/joshu-sajeev/claimqueue/internal/config"
	"github.com/joshu-sajeev/claimqueue/internal/processor"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type TypeProcessor interface {
	ProcessType(ctx context.Context, jobType config.JobType) (processor.Result, error)
}

// Locker runs body under a fleet-wide lock; *lock.Coordinator satisfies it.
type Locker interface {
	WithLock(ctx context.Context, name string, minHold, maxHold time.Duration, body func(context.Context) error) (bool, error)
}

type Options struct {
	MinHold time.Duration
	MaxHold time.Duration
	// ScheduleFor returns the cron expression for a job type.
	ScheduleFor func(config.JobType) string
}

// LockName is the fleet-wide lock guarding one job type's batches.
func LockName(t config.JobType) string {
	return "process-" + string(t) + "-jobs"
}

// Scheduler fires one processing tick per job type on that type's cron
// schedule. A type never runs concurrently with itself: within this
// process overlapping firings are skipped, across processes the lock
// decides.
type Scheduler struct {
	cron    *cron.Cron
	proc    TypeProcessor
	locker  Locker
	opts    Options
	log     *zap.Logger
	entries map[config.JobType]cron.EntryID

	ctx    context.Context
	cancel context.CancelFunc
}

func New(proc TypeProcessor, locker Locker, types []config.JobType, opts Options, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "scheduler"))
	if opts.ScheduleFor == nil {
		return nil, fmt.Errorf("scheduler: ScheduleFor is required")
	}

	cl := cronLogger{log: log.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(config.CronParser),
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		proc:    proc,
		locker:  locker,
		opts:    opts,
		log:     log,
		entries: make(map[config.JobType]cron.EntryID, len(types)),
		ctx:     ctx,
		cancel:  cancel,
	}

	for _, t := range types {
		spec := opts.ScheduleFor(t)
		id, err := s.cron.AddFunc(spec, func() { s.fire(t) })
		if err != nil {
			cancel()
			return nil, fmt.Errorf("scheduler: schedule %s %q: %w", t, spec, err)
		}
		s.entries[t] = id
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.log.Info("scheduler started", zap.Int("types", len(s.entries)))
	s.cron.Start()
}

// Stop prevents new firings and waits for running ones. If ctx ends
// first, running handlers see their context cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		return fmt.Errorf("scheduler: stop: %w", ctx.Err())
	}
}

// Next reports when jobType fires next after t.
func (s *Scheduler) Next(jobType config.JobType, after time.Time) (time.Time, bool) {
	id, ok := s.entries[jobType]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Schedule.Next(after), true
}

// RunOnce processes one batch of jobType under its lock. ran is false
// when another instance holds the lock.
func (s *Scheduler) RunOnce(ctx context.Context, jobType config.JobType) (res processor.Result, ran bool, err error) {
	ran, err = s.locker.WithLock(ctx, LockName(jobType), s.opts.MinHold, s.opts.MaxHold, func(ctx context.Context) error {
		var perr error
		res, perr = s.proc.ProcessType(ctx, jobType)
		return perr
	})
	return res, ran, err
}

func (s *Scheduler) fire(t config.JobType) {
	log := s.log.With(zap.String("type", string(t)))

	_, ran, err := s.RunOnce(s.ctx, t)
	switch {
	case err != nil:
		log.Error("processing tick failed", zap.Error(err))
	case !ran:
		log.Debug("lock busy, tick skipped")
	}
}

// cronLogger routes cron's own logging to zap. cron reports every wake-up
// through Info, so it is logged at debug level.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
