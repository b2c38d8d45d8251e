package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/claimqueue/internal/clock"
	"github.com/joshu-sajeev/claimqueue/internal/config"
	"github.com/joshu-sajeev/claimqueue/internal/failure"
	"github.com/joshu-sajeev/claimqueue/internal/mocks"
	"github.com/joshu-sajeev/claimqueue/internal/models"
	"github.com/joshu-sajeev/claimqueue/internal/storage/postgres"
	"github.com/joshu-sajeev/claimqueue/internal/worker"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.Job{}, &models.FailureReport{}))
	return db
}

// reportCollector is a failure sink that keeps every report.
type reportCollector struct {
	mu      sync.Mutex
	reports []failure.Report
}

func (c *reportCollector) Record(_ context.Context, r failure.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
	return nil
}

func (c *reportCollector) all() []failure.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]failure.Report(nil), c.reports...)
}

type harness struct {
	db        *gorm.DB
	repo      *postgres.JobRepository
	registry  *worker.Registry
	clock     *clock.Manual
	reports   *reportCollector
	processor *Processor
}

func newHarness(t *testing.T, opts Options) *harness {
	db := setupTestDB(t)
	h := &harness{
		db:       db,
		repo:     postgres.NewJobRepository(db),
		registry: worker.NewRegistry(),
		clock:    clock.NewManual(epoch),
		reports:  &reportCollector{},
	}
	reporter := failure.NewReporter(zap.NewNop(), h.reports)
	h.processor = New(h.repo, h.registry, reporter, h.clock, zap.NewNop(), opts)
	return h
}

func (h *harness) handle(t *testing.T, jobType config.JobType, fn worker.HandlerFunc) {
	require.NoError(t, h.registry.Register(jobType, fn))
}

func (h *harness) enqueue(t *testing.T, jobType config.JobType, createdAt time.Time) uuid.UUID {
	j := &models.Job{
		ID:        uuid.New(),
		CreatedAt: createdAt,
		NotBefore: createdAt,
		Type:      jobType,
		Payload:   datatypes.JSON(`{"claimId":"8f3a9b52-3c1e-4f6e-9a51-0d1c2b3a4f5e"}`),
		Status:    config.JobStatusPending,
	}
	require.NoError(t, h.repo.Create(context.Background(), j))
	return j.ID
}

func (h *harness) job(t *testing.T, id uuid.UUID) *models.Job {
	j, err := h.repo.Get(context.Background(), id)
	require.NoError(t, err)
	return j
}

func (h *harness) tick(t *testing.T, jobType config.JobType) Result {
	res, err := h.processor.ProcessType(context.Background(), jobType)
	require.NoError(t, err)
	return res
}

func (h *harness) audit(t *testing.T) []models.FailureReport {
	var rows []models.FailureReport
	require.NoError(t, h.db.Order("id").Find(&rows).Error)
	return rows
}

func fixedBackoff(d time.Duration) Options {
	return Options{BatchSize: 10, Default: RetryPolicy{MaxAttempts: 5, Backoff: Constant(d)}}
}

func TestProcessType_HappyPath(t *testing.T) {
	h := newHarness(t, fixedBackoff(time.Minute))
	var seen []worker.Message
	h.handle(t, config.JobTypeSendEmail, func(_ context.Context, msg worker.Message) worker.Outcome {
		seen = append(seen, msg)
		return worker.Succeeded()
	})
	id := h.enqueue(t, config.JobTypeSendEmail, epoch)

	res := h.tick(t, config.JobTypeSendEmail)

	assert.Equal(t, Result{Selected: 1, Completed: 1}, res)
	j := h.job(t, id)
	assert.Equal(t, config.JobStatusCompleted, j.Status)
	assert.Equal(t, 1, j.Attempts)
	require.Len(t, seen, 1)
	assert.Equal(t, id, seen[0].ID)
	assert.Equal(t, 1, seen[0].Attempt)
	assert.JSONEq(t, `{"claimId":"8f3a9b52-3c1e-4f6e-9a51-0d1c2b3a4f5e"}`, string(seen[0].Payload))

	// terminal jobs are never selected again
	h.clock.Advance(24 * time.Hour)
	assert.Equal(t, Result{}, h.tick(t, config.JobTypeSendEmail))
	assert.Len(t, seen, 1)
	assert.Empty(t, h.reports.all())
}

func TestProcessType_RecoversAfterTransientFailures(t *testing.T) {
	h := newHarness(t, fixedBackoff(time.Minute))
	calls := 0
	h.handle(t, config.JobTypeMakePayment, func(_ context.Context, msg worker.Message) worker.Outcome {
		calls++
		assert.Equal(t, calls, msg.Attempt)
		if calls < 3 {
			return worker.Retry("payment service unavailable")
		}
		return worker.Succeeded()
	})
	id := h.enqueue(t, config.JobTypeMakePayment, epoch)

	assert.Equal(t, Result{Selected: 1, Retried: 1}, h.tick(t, config.JobTypeMakePayment))
	j := h.job(t, id)
	assert.Equal(t, config.JobStatusPending, j.Status)
	assert.Equal(t, 1, j.Attempts)
	assert.Equal(t, "payment service unavailable", j.LastError)
	assert.True(t, j.NotBefore.Equal(epoch.Add(time.Minute)))

	// not due yet
	assert.Equal(t, Result{}, h.tick(t, config.JobTypeMakePayment))

	h.clock.Advance(time.Minute)
	assert.Equal(t, Result{Selected: 1, Retried: 1}, h.tick(t, config.JobTypeMakePayment))
	h.clock.Advance(time.Minute)
	assert.Equal(t, Result{Selected: 1, Completed: 1}, h.tick(t, config.JobTypeMakePayment))

	j = h.job(t, id)
	assert.Equal(t, config.JobStatusCompleted, j.Status)
	assert.Equal(t, 3, j.Attempts)
	assert.Empty(t, j.LastError)
	assert.Empty(t, h.reports.all())
}

func TestProcessType_ExhaustionReportsOnce(t *testing.T) {
	h := newHarness(t, Options{BatchSize: 10, Default: RetryPolicy{MaxAttempts: 2, Backoff: Constant(time.Minute)}})
	h.handle(t, config.JobTypeSendLetter, func(context.Context, worker.Message) worker.Outcome {
		return worker.Retry("notify unavailable")
	})
	id := h.enqueue(t, config.JobTypeSendLetter, epoch)

	assert.Equal(t, Result{Selected: 1, Retried: 1}, h.tick(t, config.JobTypeSendLetter))
	h.clock.Advance(time.Minute)
	assert.Equal(t, Result{Selected: 1, Failed: 1}, h.tick(t, config.JobTypeSendLetter))

	j := h.job(t, id)
	assert.Equal(t, config.JobStatusFailed, j.Status)
	assert.Equal(t, 2, j.Attempts)

	h.clock.Advance(time.Hour)
	assert.Equal(t, Result{}, h.tick(t, config.JobTypeSendLetter))

	reports := h.reports.all()
	require.Len(t, reports, 1)
	assert.Equal(t, id, reports[0].JobID)
	assert.Equal(t, config.JobTypeSendLetter, reports[0].Type)
	assert.Equal(t, 2, reports[0].Attempts)
	assert.Equal(t, "notify unavailable", reports[0].Reason)
	assert.Equal(t, epoch.Add(time.Minute), reports[0].Timestamp)

	audit := h.audit(t)
	require.Len(t, audit, 1)
	assert.Equal(t, id, audit[0].JobID)
	assert.Equal(t, 2, audit[0].Attempts)
	assert.Equal(t, "notify unavailable", audit[0].Reason)
}

func TestProcessType_AuditWriteFailureKeepsJobPending(t *testing.T) {
	h := newHarness(t, fixedBackoff(time.Minute))
	h.handle(t, config.JobTypeMakePayment, func(context.Context, worker.Message) worker.Outcome {
		return worker.Fatal("POST /v1/payments: unexpected status 400")
	})
	id := h.enqueue(t, config.JobTypeMakePayment, epoch)

	failed := false
	require.NoError(t, h.db.Callback().Create().Before("gorm:create").Register("fail_first_audit", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "job_failures" && !failed {
			failed = true
			tx.AddError(errors.New("disk full"))
		}
	}))

	res, err := h.processor.ProcessType(context.Background(), config.JobTypeMakePayment)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, Result{Selected: 1}, res)

	j := h.job(t, id)
	assert.Equal(t, config.JobStatusPending, j.Status, "status rolls back with the audit row")
	assert.Equal(t, 0, j.Attempts)
	assert.Empty(t, h.audit(t))
	assert.Empty(t, h.reports.all())

	assert.Equal(t, Result{Selected: 1, Failed: 1}, h.tick(t, config.JobTypeMakePayment))
	assert.Equal(t, config.JobStatusFailed, h.job(t, id).Status)
	require.Len(t, h.audit(t), 1)
	assert.Equal(t, id, h.audit(t)[0].JobID)
	require.Len(t, h.reports.all(), 1)
}

func TestProcessType_FatalFailsImmediately(t *testing.T) {
	h := newHarness(t, fixedBackoff(time.Minute))
	h.handle(t, config.JobTypeRequestNewCard, func(context.Context, worker.Message) worker.Outcome {
		return worker.Fatal("POST /v1/cards: unexpected status 400")
	})
	id := h.enqueue(t, config.JobTypeRequestNewCard, epoch)

	assert.Equal(t, Result{Selected: 1, Failed: 1}, h.tick(t, config.JobTypeRequestNewCard))

	j := h.job(t, id)
	assert.Equal(t, config.JobStatusFailed, j.Status)
	assert.Equal(t, 1, j.Attempts)
	require.Len(t, h.reports.all(), 1)
	assert.Equal(t, 1, h.reports.all()[0].Attempts)
}

func TestProcessType_FIFOBatch(t *testing.T) {
	h := newHarness(t, Options{BatchSize: 2, Default: RetryPolicy{MaxAttempts: 5, Backoff: Constant(time.Minute)}})
	var order []uuid.UUID
	h.handle(t, config.JobTypeReportClaim, func(_ context.Context, msg worker.Message) worker.Outcome {
		order = append(order, msg.ID)
		return worker.Succeeded()
	})
	t3 := h.enqueue(t, config.JobTypeReportClaim, epoch.Add(-1*time.Minute))
	t1 := h.enqueue(t, config.JobTypeReportClaim, epoch.Add(-3*time.Minute))
	t2 := h.enqueue(t, config.JobTypeReportClaim, epoch.Add(-2*time.Minute))

	assert.Equal(t, Result{Selected: 2, Completed: 2}, h.tick(t, config.JobTypeReportClaim))
	assert.Equal(t, []uuid.UUID{t1, t2}, order)
	assert.Equal(t, config.JobStatusPending, h.job(t, t3).Status)

	assert.Equal(t, Result{Selected: 1, Completed: 1}, h.tick(t, config.JobTypeReportClaim))
	assert.Equal(t, []uuid.UUID{t1, t2, t3}, order)
}

func TestProcessType_OnlyTouchesItsType(t *testing.T) {
	h := newHarness(t, fixedBackoff(time.Minute))
	h.handle(t, config.JobTypeSendEmail, func(context.Context, worker.Message) worker.Outcome { return worker.Succeeded() })
	letter := h.enqueue(t, config.JobTypeSendLetter, epoch)
	h.enqueue(t, config.JobTypeSendEmail, epoch)

	assert.Equal(t, Result{Selected: 1, Completed: 1}, h.tick(t, config.JobTypeSendEmail))
	assert.Equal(t, config.JobStatusPending, h.job(t, letter).Status)
	assert.Equal(t, 0, h.job(t, letter).Attempts)
}

func TestProcessType_MissingHandlerIsFatal(t *testing.T) {
	h := newHarness(t, fixedBackoff(time.Minute))
	id := h.enqueue(t, config.JobTypeDetermineEntitlement, epoch)

	assert.Equal(t, Result{Selected: 1, Failed: 1}, h.tick(t, config.JobTypeDetermineEntitlement))

	j := h.job(t, id)
	assert.Equal(t, config.JobStatusFailed, j.Status)
	assert.Contains(t, j.LastError, "no handler registered")
	require.Len(t, h.reports.all(), 1)
}

func TestProcessType_PanicIsRetried(t *testing.T) {
	h := newHarness(t, fixedBackoff(time.Minute))
	h.handle(t, config.JobTypeCompleteNewCardProcess, func(context.Context, worker.Message) worker.Outcome {
		panic("nil card account")
	})
	id := h.enqueue(t, config.JobTypeCompleteNewCardProcess, epoch)

	assert.Equal(t, Result{Selected: 1, Retried: 1}, h.tick(t, config.JobTypeCompleteNewCardProcess))

	j := h.job(t, id)
	assert.Equal(t, config.JobStatusPending, j.Status)
	assert.Equal(t, 1, j.Attempts)
	assert.Contains(t, j.LastError, "handler panicked: nil card account")
}

func TestProcessType_BackoffStrictlyIncreases(t *testing.T) {
	h := newHarness(t, Options{
		BatchSize: 10,
		Default:   RetryPolicy{MaxAttempts: 0, Backoff: Exponential{Initial: time.Second, Max: time.Hour}},
	})
	h.handle(t, config.JobTypeReportPayment, func(context.Context, worker.Message) worker.Outcome {
		return worker.Retry("reporting service unavailable")
	})
	id := h.enqueue(t, config.JobTypeReportPayment, epoch)

	var previous time.Duration
	for attempt := 1; attempt <= 8; attempt++ {
		assert.Equal(t, Result{Selected: 1, Retried: 1}, h.tick(t, config.JobTypeReportPayment))

		j := h.job(t, id)
		require.Equal(t, attempt, j.Attempts)
		delay := j.NotBefore.Sub(h.clock.Now())
		assert.Greater(t, delay, previous, "attempt %d", attempt)
		previous = delay

		h.clock.Set(j.NotBefore)
	}
	assert.Empty(t, h.reports.all(), "unlimited policy never fails a job")
}

func TestProcessType_PerTypePolicy(t *testing.T) {
	h := newHarness(t, Options{
		BatchSize: 10,
		Default:   RetryPolicy{MaxAttempts: 5, Backoff: Constant(time.Minute)},
		Policies: map[config.JobType]RetryPolicy{
			config.JobTypeSendEmail: {MaxAttempts: 1},
		},
	})
	h.handle(t, config.JobTypeSendEmail, func(context.Context, worker.Message) worker.Outcome { return worker.Retry("down") })
	id := h.enqueue(t, config.JobTypeSendEmail, epoch)

	assert.Equal(t, Result{Selected: 1, Failed: 1}, h.tick(t, config.JobTypeSendEmail))
	assert.Equal(t, config.JobStatusFailed, h.job(t, id).Status)
}

func TestProcessType_ReporterErrorKeepsTerminalState(t *testing.T) {
	db := setupTestDB(t)
	repo := postgres.NewJobRepository(db)
	registry := worker.NewRegistry()
	require.NoError(t, registry.Register(config.JobTypeSendEmail, worker.HandlerFunc(func(context.Context, worker.Message) worker.Outcome {
		return worker.Fatal("template missing")
	})))
	reporter := failure.NewReporter(zap.NewNop(), failure.SinkFunc(func(context.Context, failure.Report) error {
		return errors.New("broker down")
	}))
	p := New(repo, registry, reporter, clock.NewManual(epoch), zap.NewNop(), fixedBackoff(time.Minute))

	j := &models.Job{ID: uuid.New(), CreatedAt: epoch, NotBefore: epoch, Type: config.JobTypeSendEmail, Payload: datatypes.JSON(`{}`), Status: config.JobStatusPending}
	require.NoError(t, repo.Create(context.Background(), j))

	res, err := p.ProcessType(context.Background(), config.JobTypeSendEmail)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	saved, err := repo.Get(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, config.JobStatusFailed, saved.Status)
}

func pendingJob(jobType config.JobType) models.Job {
	return models.Job{ID: uuid.New(), CreatedAt: epoch, NotBefore: epoch, Type: jobType, Payload: datatypes.JSON(`{}`), Status: config.JobStatusPending}
}

func TestProcessType_StoreErrors(t *testing.T) {
	storeDown := errors.New("connection refused")

	tests := []struct {
		name        string
		outcome     worker.Outcome
		setupMock   func(m *mocks.QueueStoreMock, jobs []models.Job)
		wantErr     error
		wantResult  Result
		wantReports int
	}{
		{
			name: "fetch error aborts the tick",
			setupMock: func(m *mocks.QueueStoreMock, _ []models.Job) {
				m.On("FetchDue", mock.Anything, config.JobTypeMakePayment, epoch, 10).Return(nil, storeDown)
			},
			wantErr: storeDown,
		},
		{
			name:    "failed save aborts before reporting",
			outcome: worker.Fatal("card blocked"),
			setupMock: func(m *mocks.QueueStoreMock, jobs []models.Job) {
				m.On("FetchDue", mock.Anything, config.JobTypeMakePayment, epoch, 10).Return(jobs, nil)
				m.On("SaveFailure", mock.Anything, mock.Anything, mock.Anything).Return(storeDown).Once()
			},
			wantErr:    storeDown,
			wantResult: Result{Selected: 2},
		},
		{
			name:    "retry outcome is saved without an audit row",
			outcome: worker.Retry("payment service unavailable"),
			setupMock: func(m *mocks.QueueStoreMock, jobs []models.Job) {
				m.On("FetchDue", mock.Anything, config.JobTypeMakePayment, epoch, 10).Return(jobs, nil)
				m.On("SaveOutcome", mock.Anything, mock.Anything).Return(nil).Twice()
			},
			wantResult: Result{Selected: 2, Retried: 2},
		},
		{
			name:    "job finished elsewhere is skipped",
			outcome: worker.Fatal("card blocked"),
			setupMock: func(m *mocks.QueueStoreMock, jobs []models.Job) {
				m.On("FetchDue", mock.Anything, config.JobTypeMakePayment, epoch, 10).Return(jobs, nil)
				m.On("SaveFailure", mock.Anything, mock.MatchedBy(func(j *models.Job) bool { return j.ID == jobs[0].ID }), mock.Anything).
					Return(models.ErrJobNotPending)
				m.On("SaveFailure", mock.Anything, mock.MatchedBy(func(j *models.Job) bool { return j.ID == jobs[1].ID }), mock.Anything).
					Return(nil)
			},
			wantResult:  Result{Selected: 2, Failed: 1},
			wantReports: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(mocks.QueueStoreMock)
			jobs := []models.Job{pendingJob(config.JobTypeMakePayment), pendingJob(config.JobTypeMakePayment)}
			tt.setupMock(store, jobs)

			registry := worker.NewRegistry()
			require.NoError(t, registry.Register(config.JobTypeMakePayment, worker.HandlerFunc(func(context.Context, worker.Message) worker.Outcome {
				return tt.outcome
			})))
			reports := &reportCollector{}
			p := New(store, registry, failure.NewReporter(zap.NewNop(), reports), clock.NewManual(epoch), zap.NewNop(), fixedBackoff(time.Minute))

			res, err := p.ProcessType(context.Background(), config.JobTypeMakePayment)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantResult, res)
			assert.Len(t, reports.all(), tt.wantReports)
			store.AssertExpectations(t)
		})
	}
}

func TestProcessType_CancelledContextStopsBetweenJobs(t *testing.T) {
	h := newHarness(t, fixedBackoff(time.Minute))
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	h.handle(t, config.JobTypeSendEmail, func(context.Context, worker.Message) worker.Outcome {
		calls++
		cancel()
		return worker.Succeeded()
	})
	first := h.enqueue(t, config.JobTypeSendEmail, epoch.Add(-time.Minute))
	second := h.enqueue(t, config.JobTypeSendEmail, epoch)

	res, err := h.processor.ProcessType(ctx, config.JobTypeSendEmail)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Equal(t, Result{Selected: 2, Completed: 1}, res)
	assert.Equal(t, config.JobStatusCompleted, h.job(t, first).Status)
	assert.Equal(t, config.JobStatusPending, h.job(t, second).Status)
}

func TestProcessType_Property_EventuallyTerminal(t *testing.T) {
	const maxAttempts = 4

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("a job ends COMPLETED or FAILED within the attempt cap", prop.ForAll(
		func(transientFailures int) bool {
			h := newHarness(t, Options{BatchSize: 10, Default: RetryPolicy{MaxAttempts: maxAttempts, Backoff: Constant(time.Minute)}})
			calls := 0
			h.handle(t, config.JobTypeMakePayment, func(context.Context, worker.Message) worker.Outcome {
				calls++
				if calls <= transientFailures {
					return worker.Retry("payment service unavailable")
				}
				return worker.Succeeded()
			})
			id := h.enqueue(t, config.JobTypeMakePayment, epoch)

			for range maxAttempts + 2 {
				if _, err := h.processor.ProcessType(context.Background(), config.JobTypeMakePayment); err != nil {
					return false
				}
				h.clock.Advance(time.Minute)
			}

			j := h.job(t, id)
			reports := h.reports.all()
			if transientFailures < maxAttempts {
				return j.Status == config.JobStatusCompleted &&
					j.Attempts == transientFailures+1 &&
					len(reports) == 0
			}
			return j.Status == config.JobStatusFailed &&
				j.Attempts == maxAttempts &&
				len(reports) == 1 &&
				reports[0].Attempts == maxAttempts
		},
		gen.IntRange(0, 2*maxAttempts),
	))

	properties.TestingRun(t)
}
