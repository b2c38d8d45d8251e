package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/claimqueue/internal/config"
	"github.com/joshu-sajeev/claimqueue/internal/dto"
	"github.com/joshu-sajeev/claimqueue/internal/job"
	"github.com/joshu-sajeev/claimqueue/internal/models"
	"gorm.io/gorm"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

var _ job.JobRepoInterface = (*JobRepository)(nil)

// WithTx returns a repository bound to tx. Writes through it commit or
// roll back with the caller's transaction.
func (r *JobRepository) WithTx(tx *gorm.DB) job.JobRepoInterface {
	return &JobRepository{db: tx}
}

// Create inserts a new job record.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// Get retrieves a single job record by its ID.
func (r *JobRepository) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("get job %s: %w", id, models.ErrJobNotFound)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// List returns jobs matching the filter, newest first.
func (r *JobRepository) List(ctx context.Context, filter dto.JobFilter) ([]models.Job, error) {
	q := r.db.WithContext(ctx).Model(&models.Job{})
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var jobs []models.Job
	if err := q.Order("created_at DESC").Order("id DESC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// FetchDue selects up to limit PENDING jobs of one type whose not-before
// has passed, oldest first. Ties on creation time are broken by id so the
// order is stable.
func (r *JobRepository) FetchDue(ctx context.Context, jobType config.JobType, now time.Time, limit int) ([]models.Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	var jobs []models.Job
	if err := r.db.WithContext(ctx).
		Where("type = ? AND status = ? AND not_before <= ?", jobType, config.JobStatusPending, now).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("fetch due jobs: %w", err)
	}
	return jobs, nil
}

// SaveOutcome writes attempts, status, not-before and the last error for
// a job that is still PENDING in the store. A job that already reached a
// terminal status is never rewritten; ErrJobNotPending is returned instead.
func (r *JobRepository) SaveOutcome(ctx context.Context, job *models.Job) error {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", job.ID, config.JobStatusPending).
		Updates(map[string]any{
			"attempts":   job.Attempts,
			"status":     job.Status,
			"not_before": job.NotBefore,
			"last_error": job.LastError,
		})
	if res.Error != nil {
		return fmt.Errorf("save outcome: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("save outcome for job %s: %w", job.ID, models.ErrJobNotPending)
	}
	return nil
}

// SaveFailure marks a PENDING job FAILED and writes its audit row in one
// transaction. If either write fails neither is kept, and the job stays
// PENDING for a later tick.
func (r *JobRepository) SaveFailure(ctx context.Context, job *models.Job, report *models.FailureReport) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := (&JobRepository{db: tx}).SaveOutcome(ctx, job); err != nil {
			return err
		}
		if err := NewFailureRepository(tx).Create(ctx, report); err != nil {
			return fmt.Errorf("save failure report: %w", err)
		}
		return nil
	})
}
