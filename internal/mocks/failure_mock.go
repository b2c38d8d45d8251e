package mocks

import (
	"context"

	"github.com/joshu-sajeev/claimqueue/internal/config"
	"github.com/joshu-sajeev/claimqueue/internal/models"
	"github.com/stretchr/testify/mock"
)

type FailureStoreMock struct {
	mock.Mock
}

func (m *FailureStoreMock) List(ctx context.Context, jobType config.JobType, limit int) ([]models.FailureReport, error) {
	args := m.Called(ctx, jobType, limit)

	reports, _ := args.Get(0).([]models.FailureReport)
	return reports, args.Error(1)
}
