package postgres

import (
	"context"
	"fmt"

	"github.com/joshu-sajeev/claimqueue/internal/config"
	"github.com/joshu-sajeev/claimqueue/internal/job"
	"github.com/joshu-sajeev/claimqueue/internal/models"
	"gorm.io/gorm"
)

type FailureRepository struct {
	db *gorm.DB
}

func NewFailureRepository(db *gorm.DB) *FailureRepository {
	return &FailureRepository{db: db}
}

var _ job.FailureRepoInterface = (*FailureRepository)(nil)

func (r *FailureRepository) Create(ctx context.Context, report *models.FailureReport) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("create failure report: %w", err)
	}
	return nil
}

// List returns failure reports, newest first, optionally for one type.
func (r *FailureRepository) List(ctx context.Context, jobType config.JobType, limit int) ([]models.FailureReport, error) {
	q := r.db.WithContext(ctx).Model(&models.FailureReport{})
	if jobType != "" {
		q = q.Where("type = ?", jobType)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var reports []models.FailureReport
	if err := q.Order("reported_at DESC").Order("id DESC").Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("list failure reports: %w", err)
	}
	return reports, nil
}
