package job

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/claimqueue/common"
	"github.com/joshu-sajeev/claimqueue/internal/clock"
	"github.com/joshu-sajeev/claimqueue/internal/config"
	"github.com/joshu-sajeev/claimqueue/internal/dto"
	"github.com/joshu-sajeev/claimqueue/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type JobService struct {
	repo     JobRepoInterface
	failures FailureRepoInterface
	clock    clock.Clock
}

func NewJobService(repo JobRepoInterface, failures FailureRepoInterface, clk clock.Clock) *JobService {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &JobService{repo: repo, failures: failures, clock: clk}
}

var _ JobServiceInterface = (*JobService)(nil)

type enqueueOptions struct {
	notBefore *time.Time
}

type EnqueueOption func(*enqueueOptions)

// WithNotBefore defers the job until t, e.g. the start of the next
// payment cycle.
func WithNotBefore(t time.Time) EnqueueOption {
	return func(o *enqueueOptions) {
		utc := t.UTC()
		o.notBefore = &utc
	}
}

// WithTx returns a producer that writes through tx, so the enqueue commits
// or rolls back with the caller's business change.
func (s *JobService) WithTx(tx *gorm.DB) *JobService {
	return &JobService{repo: s.repo.WithTx(tx), failures: s.failures, clock: s.clock}
}

// Enqueue records one PENDING job. payload may be a typed value, which is
// JSON encoded, or pre-encoded JSON as json.RawMessage or []byte. The
// payload is checked against the job type's schema before it is stored.
// Duplicate logical requests are not detected.
func (s *JobService) Enqueue(
	ctx context.Context,
	jobType config.JobType,
	payload any,
	opts ...EnqueueOption,
) (uuid.UUID, error) {
	if !jobType.Valid() {
		return uuid.Nil, jobError(ErrInvalidType, "%q", jobType)
	}

	raw, err := encodePayload(payload)
	if err != nil {
		return uuid.Nil, err
	}

	if check, ok := payloadValidators[jobType]; ok {
		if err := check(raw); err != nil {
			return uuid.Nil, err
		}
	}

	var o enqueueOptions
	for _, opt := range opts {
		opt(&o)
	}

	now := s.clock.Now()
	job := models.Job{
		ID:        uuid.New(),
		CreatedAt: now,
		NotBefore: now,
		Type:      jobType,
		Payload:   datatypes.JSON(raw),
		Status:    config.JobStatusPending,
	}
	if o.notBefore != nil {
		job.NotBefore = *o.notBefore
	}

	if err := s.repo.Create(ctx, &job); err != nil {
		return uuid.Nil, err
	}

	return job.ID, nil
}

func encodePayload(payload any) (json.RawMessage, error) {
	var raw []byte
	switch p := payload.(type) {
	case nil:
		return nil, jobError(ErrSerialization, "payload is required")
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, jobError(ErrSerialization, "%v", err)
		}
		raw = b
	}

	if !json.Valid(raw) {
		return nil, jobError(ErrSerialization, "payload must be valid JSON")
	}
	return raw, nil
}

// GetJob retrieves a job by its ID from the repository.
// It maps repository errors to appropriate API errors
// (e.g., not found, timeout, or internal failure).
func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	job, err := s.repo.Get(ctx, id)
	if err != nil {
		switch {
		case isContextErr(err):
			return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
		case errors.Is(err, models.ErrJobNotFound):
			return nil, common.Wrap(http.StatusNotFound, err, "job not found")
		default:
			return nil, common.Wrap(http.StatusInternalServerError, err, "failed to get job")
		}
	}

	resp := toJobResponse(*job)
	return &resp, nil
}

// ListJobs returns jobs matching the filter, newest first.
func (s *JobService) ListJobs(ctx context.Context, filter dto.JobFilter) ([]dto.JobResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	if filter.Type != "" && !filter.Type.Valid() {
		return nil, common.NewAPIError(
			http.StatusBadRequest,
			"invalid job type",
			map[string]any{
				"provided": filter.Type,
				"allowed":  config.AllowedJobTypes,
			},
		)
	}

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, common.NewAPIError(
			http.StatusBadRequest,
			"invalid job status",
			map[string]any{
				"provided": filter.Status,
				"allowed":  config.AllowedStatuses,
			},
		)
	}

	filter.Limit = clampLimit(filter.Limit)

	jobs, err := s.repo.List(ctx, filter)
	if err != nil {
		if isContextErr(err) {
			return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
		}
		return nil, common.Errf(http.StatusInternalServerError, "failed to list jobs")
	}

	dtos := make([]dto.JobResponseDTO, len(jobs))
	for i, job := range jobs {
		dtos[i] = toJobResponse(job)
	}

	return dtos, nil
}

// ListFailures returns the failure audit trail, newest first.
func (s *JobService) ListFailures(ctx context.Context, jobType config.JobType, limit int) ([]dto.FailureResponseDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	if jobType != "" && !jobType.Valid() {
		return nil, common.NewAPIError(
			http.StatusBadRequest,
			"invalid job type",
			map[string]any{
				"provided": jobType,
				"allowed":  config.AllowedJobTypes,
			},
		)
	}

	reports, err := s.failures.List(ctx, jobType, clampLimit(limit))
	if err != nil {
		if isContextErr(err) {
			return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
		}
		return nil, common.Errf(http.StatusInternalServerError, "failed to list failures")
	}

	dtos := make([]dto.FailureResponseDTO, len(reports))
	for i, r := range reports {
		dtos[i] = dto.FailureResponseDTO{
			JobID:      r.JobID,
			Type:       r.Type,
			Attempts:   r.Attempts,
			Reason:     r.Reason,
			ReportedAt: r.ReportedAt,
		}
	}
	return dtos, nil
}

func toJobResponse(job models.Job) dto.JobResponseDTO {
	return dto.JobResponseDTO{
		ID:        job.ID,
		Type:      job.Type,
		Payload:   json.RawMessage(job.Payload),
		Status:    job.Status,
		Attempts:  job.Attempts,
		LastError: job.LastError,
		NotBefore: job.NotBefore,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
