package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/claimqueue/internal/config"
	"github.com/joshu-sajeev/claimqueue/internal/dto"
	"github.com/joshu-sajeev/claimqueue/internal/job"
	"github.com/stretchr/testify/mock"
)

type JobServiceMock struct {
	mock.Mock
}

// Enqueue records the number of options rather than the closures, which
// cannot be compared.
func (m *JobServiceMock) Enqueue(ctx context.Context, jobType config.JobType, payload any, opts ...job.EnqueueOption) (uuid.UUID, error) {
	args := m.Called(ctx, jobType, payload, len(opts))

	id, _ := args.Get(0).(uuid.UUID)
	return id, args.Error(1)
}

func (m *JobServiceMock) GetJob(ctx context.Context, id uuid.UUID) (*dto.JobResponseDTO, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.JobResponseDTO), args.Error(1)
}

func (m *JobServiceMock) ListJobs(ctx context.Context, filter dto.JobFilter) ([]dto.JobResponseDTO, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dto.JobResponseDTO), args.Error(1)
}

func (m *JobServiceMock) ListFailures(ctx context.Context, jobType config.JobType, limit int) ([]dto.FailureResponseDTO, error) {
	args := m.Called(ctx, jobType, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dto.FailureResponseDTO), args.Error(1)
}
