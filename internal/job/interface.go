package job

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshu-sajeev/claimqueue/internal/config"
	"github.com/joshu-sajeev/claimqueue/internal/dto"
	"github.com/joshu-sajeev/claimqueue/internal/models"
	"gorm.io/gorm"
)

// JobRepoInterface defines the queue store operations the producer and
// the admin API need.
type JobRepoInterface interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
	List(ctx context.Context, filter dto.JobFilter) ([]models.Job, error)
	WithTx(tx *gorm.DB) JobRepoInterface
}

// FailureRepoInterface reads the failure audit trail.
type FailureRepoInterface interface {
	List(ctx context.Context, jobType config.JobType, limit int) ([]models.FailureReport, error)
}

// JobServiceInterface is the enqueue client plus read access for operators.
type JobServiceInterface interface {
	Enqueue(ctx context.Context, jobType config.JobType, payload any, opts ...EnqueueOption) (uuid.UUID, error)
	GetJob(ctx context.Context, id uuid.UUID) (*dto.JobResponseDTO, error)
	ListJobs(ctx context.Context, filter dto.JobFilter) ([]dto.JobResponseDTO, error)
	ListFailures(ctx context.Context, jobType config.JobType, limit int) ([]dto.FailureResponseDTO, error)
}

// JobHandlerInterface defines the contract for HTTP request handlers.
type JobHandlerInterface interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	Failures(c *gin.Context)
}
