package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/claimqueue/internal/config"
)

// FailureReport is the audit row written when a job reaches FAILED.
// It points at the job by id only.
type FailureReport struct {
	ID         uint           `gorm:"primaryKey;autoIncrement"`
	JobID      uuid.UUID      `gorm:"type:uuid;not null;index"`
	Type       config.JobType `gorm:"type:varchar(64);not null;index"`
	Attempts   int            `gorm:"not null"`
	Reason     string         `gorm:"type:text"`
	ReportedAt time.Time      `gorm:"not null"`
}

func (FailureReport) TableName() string { return "job_failures" }
