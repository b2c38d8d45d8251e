package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/claimqueue/internal/config"
	"github.com/joshu-sajeev/claimqueue/internal/dto"
	"github.com/joshu-sajeev/claimqueue/internal/job"
	"github.com/joshu-sajeev/claimqueue/internal/models"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

type JobRepoMock struct {
	mock.Mock
}

func (m *JobRepoMock) Create(ctx context.Context, j *models.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

func (m *JobRepoMock) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	args := m.Called(ctx, id)

	j, _ := args.Get(0).(*models.Job)
	return j, args.Error(1)
}

func (m *JobRepoMock) List(ctx context.Context, filter dto.JobFilter) ([]models.Job, error) {
	args := m.Called(ctx, filter)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

// WithTx returns the mock itself unless a different repository was
// configured for the call.
func (m *JobRepoMock) WithTx(tx *gorm.DB) job.JobRepoInterface {
	args := m.Called(tx)

	if repo, ok := args.Get(0).(job.JobRepoInterface); ok {
		return repo
	}
	return m
}

// QueueStoreMock stands in for the processor's view of the queue store.
type QueueStoreMock struct {
	mock.Mock
}

func (m *QueueStoreMock) FetchDue(ctx context.Context, jobType config.JobType, now time.Time, limit int) ([]models.Job, error) {
	args := m.Called(ctx, jobType, now, limit)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *QueueStoreMock) SaveOutcome(ctx context.Context, j *models.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

func (m *QueueStoreMock) SaveFailure(ctx context.Context, j *models.Job, report *models.FailureReport) error {
	args := m.Called(ctx, j, report)
	return args.Error(0)
}
