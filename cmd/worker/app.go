package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/joshu-sajeev/claimqueue/internal/clock"
	"github.com/joshu-sajeev/claimqueue/internal/config"
	"github.com/joshu-sajeev/claimqueue/internal/failure"
	"github.com/joshu-sajeev/claimqueue/internal/lock"
	"github.com/joshu-sajeev/claimqueue/internal/processor"
	"github.com/joshu-sajeev/claimqueue/internal/scheduler"
	"github.com/joshu-sajeev/claimqueue/internal/storage/postgres"
	"github.com/joshu-sajeev/claimqueue/internal/worker"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app is the wired message processor.
type app struct {
	scheduler *scheduler.Scheduler
	registry  *worker.Registry
	closers   []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func buildApp(ctx context.Context, cfg *config.Config, db *gorm.DB, log *zap.Logger) (*app, error) {
	a := &app{}

	provider, err := newLockProvider(ctx, cfg.Processor, db)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, provider.Close)

	a.registry = worker.NewRegistry()
	err = worker.RegisterClaimHandlers(a.registry, worker.ClaimClients{
		Card:      worker.NewHTTPClient(cfg.Remote.CardServiceURL, cfg.Remote.Timeout),
		Payment:   worker.NewHTTPClient(cfg.Remote.PaymentServiceURL, cfg.Remote.Timeout),
		Notify:    worker.NewHTTPClient(cfg.Remote.NotifyServiceURL, cfg.Remote.Timeout),
		Reporting: worker.NewHTTPClient(cfg.Remote.ReportingServiceURL, cfg.Remote.Timeout),
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("register handlers: %w", err)
	}

	sinks := []failure.Sink{
		failure.NewLogSink(log.With(zap.String("component", "failure_sink"))),
	}
	if cfg.Failure.AMQPURL != "" {
		amqpSink, err := failure.DialAMQPSink(failure.AMQPConfig{URL: cfg.Failure.AMQPURL, Exchange: cfg.Failure.AMQPExchange})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, amqpSink.Close)
		sinks = append(sinks, amqpSink)
	}
	reporter := failure.NewReporter(log, sinks...)

	def, policies := processor.PoliciesFromConfig(cfg.Processor)
	proc := processor.New(
		postgres.NewJobRepository(db),
		a.registry,
		reporter,
		clock.RealClock{},
		log,
		processor.Options{BatchSize: cfg.Processor.BatchSize, Default: def, Policies: policies},
	)

	a.scheduler, err = scheduler.New(
		proc,
		lock.NewCoordinator(provider, clock.RealClock{}, log),
		a.registry.Types(),
		scheduler.Options{
			MinHold:     cfg.Processor.MinLockTime.Duration(),
			MaxHold:     cfg.Processor.MaxLockTime.Duration(),
			ScheduleFor: cfg.Processor.ScheduleFor,
		},
		log,
	)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func newLockProvider(ctx context.Context, cfg config.Processor, db *gorm.DB) (lock.Provider, error) {
	switch cfg.LockBackend {
	case "redis":
		return lock.NewRedisProvider(ctx, lock.RedisConfig{URL: cfg.RedisURL})
	case "memory":
		return lock.NewMemoryProvider(), nil
	default:
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("lock provider: %w", err)
		}
		return lock.NewPostgresProvider(sqlDB, lock.PostgresConfig{})
	}
}
