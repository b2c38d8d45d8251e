package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joshu-sajeev/claimqueue/internal/clock"
	"github.com/joshu-sajeev/claimqueue/internal/config"
	"github.com/joshu-sajeev/claimqueue/internal/lock"
	"github.com/joshu-sajeev/claimqueue/internal/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeProcessor struct {
	mu      sync.Mutex
	calls   []config.JobType
	result  processor.Result
	err     error
	block   chan struct{}
	running atomic.Int32
	maxRun  atomic.Int32
}

func (f *fakeProcessor) ProcessType(ctx context.Context, t config.JobType) (processor.Result, error) {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		m := f.maxRun.Load()
		if n <= m || f.maxRun.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, t)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return processor.Result{}, ctx.Err()
		}
	}
	return f.result, f.err
}

func (f *fakeProcessor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func defaultSchedules() Options {
	cfg := config.Processor{
		DefaultSchedule: "*/30 * * * * *",
		OffsetSchedule:  "5/30 * * * * *",
		Schedules:       map[string]string{"SEND_LETTER": "0 0 9 * * MON-FRI"},
	}
	return Options{MinHold: 10 * time.Second, MaxHold: 30 * time.Minute, ScheduleFor: cfg.ScheduleFor}
}

func newCoordinator() *lock.Coordinator {
	return lock.NewCoordinator(lock.NewMemoryProvider(), clock.NewManual(epoch), zap.NewNop())
}

func TestLockName(t *testing.T) {
	assert.Equal(t, "process-MAKE_PAYMENT-jobs", LockName(config.JobTypeMakePayment))
	assert.Equal(t, "process-REPORT_CLAIM-jobs", LockName(config.JobTypeReportClaim))
}

func TestNew_Schedules(t *testing.T) {
	s, err := New(&fakeProcessor{}, newCoordinator(), config.AllowedJobTypes, defaultSchedules(), zap.NewNop())
	require.NoError(t, err)

	tests := []struct {
		jobType config.JobType
		want    time.Time
	}{
		{config.JobTypeMakePayment, epoch.Add(30 * time.Second)},
		{config.JobTypeSendEmail, epoch.Add(30 * time.Second)},
		{config.JobTypeReportClaim, epoch.Add(5 * time.Second)},
		{config.JobTypeReportPayment, epoch.Add(5 * time.Second)},
		{config.JobTypeSendLetter, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.jobType), func(t *testing.T) {
			next, ok := s.Next(tt.jobType, epoch)
			require.True(t, ok)
			assert.Equal(t, tt.want, next)
		})
	}

	_, ok := s.Next("SEND_FAX", epoch)
	assert.False(t, ok)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(&fakeProcessor{}, newCoordinator(), config.AllowedJobTypes, Options{}, zap.NewNop())
	assert.Error(t, err)

	opts := defaultSchedules()
	opts.ScheduleFor = func(config.JobType) string { return "every thirty seconds" }
	_, err = New(&fakeProcessor{}, newCoordinator(), []config.JobType{config.JobTypeSendEmail}, opts, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SEND_EMAIL")
}

func TestRunOnce(t *testing.T) {
	t.Run("runs the processor under the type lock", func(t *testing.T) {
		proc := &fakeProcessor{result: processor.Result{Selected: 3, Completed: 2, Retried: 1}}
		s, err := New(proc, newCoordinator(), config.AllowedJobTypes, defaultSchedules(), zap.NewNop())
		require.NoError(t, err)

		res, ran, err := s.RunOnce(context.Background(), config.JobTypeMakePayment)

		require.NoError(t, err)
		assert.True(t, ran)
		assert.Equal(t, processor.Result{Selected: 3, Completed: 2, Retried: 1}, res)
		assert.Equal(t, []config.JobType{config.JobTypeMakePayment}, proc.calls)
	})

	t.Run("skips when another instance holds the lock", func(t *testing.T) {
		provider := lock.NewMemoryProvider()
		_, acquired, err := provider.Acquire(context.Background(), LockName(config.JobTypeMakePayment), epoch, epoch.Add(time.Hour))
		require.NoError(t, err)
		require.True(t, acquired)

		proc := &fakeProcessor{}
		coordinator := lock.NewCoordinator(provider, clock.NewManual(epoch), zap.NewNop())
		s, err := New(proc, coordinator, config.AllowedJobTypes, defaultSchedules(), zap.NewNop())
		require.NoError(t, err)

		_, ran, err := s.RunOnce(context.Background(), config.JobTypeMakePayment)
		require.NoError(t, err)
		assert.False(t, ran)
		assert.Zero(t, proc.callCount())

		// other types are unaffected
		_, ran, err = s.RunOnce(context.Background(), config.JobTypeSendEmail)
		require.NoError(t, err)
		assert.True(t, ran)
	})

	t.Run("processor error is returned", func(t *testing.T) {
		storeDown := errors.New("fetch due jobs: connection refused")
		s, err := New(&fakeProcessor{err: storeDown}, newCoordinator(), config.AllowedJobTypes, defaultSchedules(), zap.NewNop())
		require.NoError(t, err)

		_, ran, err := s.RunOnce(context.Background(), config.JobTypeSendEmail)
		assert.True(t, ran)
		assert.ErrorIs(t, err, storeDown)
	})
}

func TestScheduler_FiresAndSkipsOverlaps(t *testing.T) {
	proc := &fakeProcessor{block: make(chan struct{})}
	opts := defaultSchedules()
	opts.MinHold = 0
	opts.ScheduleFor = func(config.JobType) string { return "* * * * * *" }

	// real clock so the lock's hold window follows the cron firings
	coordinator := lock.NewCoordinator(lock.NewMemoryProvider(), clock.RealClock{}, zap.NewNop())
	s, err := New(proc, coordinator, []config.JobType{config.JobTypeReportClaim}, opts, zap.NewNop())
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return proc.callCount() == 1 }, 3*time.Second, 10*time.Millisecond)

	// later firings while the first is blocked are skipped
	time.Sleep(2200 * time.Millisecond)
	assert.Equal(t, 1, proc.callCount())
	assert.Equal(t, int32(1), proc.maxRun.Load())

	close(proc.block)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, int32(1), proc.maxRun.Load())
}

func TestScheduler_StopTimeoutCancelsRunningTick(t *testing.T) {
	proc := &fakeProcessor{block: make(chan struct{})}
	opts := defaultSchedules()
	opts.ScheduleFor = func(config.JobType) string { return "* * * * * *" }

	s, err := New(proc, lock.NewCoordinator(lock.NewMemoryProvider(), clock.RealClock{}, zap.NewNop()),
		[]config.JobType{config.JobTypeSendEmail}, opts, zap.NewNop())
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return proc.running.Load() == 1 }, 3*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = s.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.Eventually(t, func() bool { return proc.running.Load() == 0 }, time.Second, 10*time.Millisecond)
}
