package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/claimqueue/internal/config"
)

type JobCreateDTO struct {
	Type      config.JobType  `json:"type" validate:"required"`
	Payload   json.RawMessage `json:"payload" validate:"required"`
	NotBefore *time.Time      `json:"not_before,omitempty"`
}

type JobCreatedDTO struct {
	ID uuid.UUID `json:"id"`
}

type JobResponseDTO struct {
	ID        uuid.UUID        `json:"id"`
	Type      config.JobType   `json:"type"`
	Payload   json.RawMessage  `json:"payload"`
	Status    config.JobStatus `json:"status"`
	Attempts  int              `json:"attempts"`
	LastError string           `json:"last_error,omitempty"`
	NotBefore time.Time        `json:"not_before"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// JobFilter narrows admin listings. Zero values match everything.
type JobFilter struct {
	Type   config.JobType
	Status config.JobStatus
	Limit  int
}

type FailureResponseDTO struct {
	JobID      uuid.UUID      `json:"job_id"`
	Type       config.JobType `json:"type"`
	Attempts   int            `json:"attempt_count"`
	Reason     string         `json:"reason"`
	ReportedAt time.Time      `json:"timestamp"`
}
