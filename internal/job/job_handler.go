package job

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshu-sajeev/claimqueue/common"
	"github.com/joshu-sajeev/claimqueue/internal/config"
	"github.com/joshu-sajeev/claimqueue/internal/dto"
	"github.com/joshu-sajeev/claimqueue/middleware"
)

type JobHandler struct {
	service JobServiceInterface
}

func NewJobHandler(s JobServiceInterface) *JobHandler {
	return &JobHandler{service: s}
}

var _ JobHandlerInterface = (*JobHandler)(nil)

// Register mounts the admin routes on r.
func (h *JobHandler) Register(r gin.IRouter) {
	r.POST("/jobs", h.Create)
	r.GET("/jobs", h.List)
	r.GET("/jobs/:id", h.Get)
	r.GET("/failures", h.Failures)
}

// Create enqueues a job on behalf of an operator and returns its id.
func (h *JobHandler) Create(c *gin.Context) {
	var req dto.JobCreateDTO

	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	var opts []EnqueueOption
	if req.NotBefore != nil {
		opts = append(opts, WithNotBefore(*req.NotBefore))
	}

	id, err := h.service.Enqueue(c.Request.Context(), req.Type, req.Payload, opts...)
	if err != nil {
		c.Error(enqueueAPIError(req.Type, err))
		c.Abort()
		return
	}

	c.JSON(http.StatusCreated, dto.JobCreatedDTO{ID: id})
}

func enqueueAPIError(jobType config.JobType, err error) common.APIError {
	var payloadErr *PayloadError
	switch {
	case errors.Is(err, ErrInvalidType):
		return common.NewAPIError(
			http.StatusBadRequest,
			"invalid job type",
			map[string]any{
				"provided": jobType,
				"allowed":  config.AllowedJobTypes,
			},
		)
	case errors.As(err, &payloadErr):
		return common.NewAPIError(http.StatusBadRequest, "payload validation failed", payloadErr.Fields)
	case errors.Is(err, ErrSerialization), errors.Is(err, ErrInvalidPayload):
		return common.Errf(http.StatusBadRequest, "%s", err.Error())
	case isContextErr(err):
		return common.Errf(http.StatusRequestTimeout, "request timed out")
	default:
		return common.Errf(http.StatusInternalServerError, "failed to enqueue job")
	}
}

// Get returns one job by id.
func (h *JobHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(common.Errf(http.StatusBadRequest, "invalid ID"))
		return
	}

	resp, err := h.service.GetJob(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// List returns jobs filtered by the optional type, status and limit query
// parameters.
func (h *JobHandler) List(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	jobs, err := h.service.ListJobs(c.Request.Context(), dto.JobFilter{
		Type:   config.JobType(c.Query("type")),
		Status: config.JobStatus(c.Query("status")),
		Limit:  limit,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// Failures returns the failure audit trail.
func (h *JobHandler) Failures(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	reports, err := h.service.ListFailures(c.Request.Context(), config.JobType(c.Query("type")), limit)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, reports)
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		c.Error(common.Errf(http.StatusBadRequest, "limit must be a non-negative integer"))
		return 0, false
	}
	return limit, true
}
