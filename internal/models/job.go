package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/claimqueue/internal/config"
	"gorm.io/datatypes"
)

// Job is one durable unit of deferred claim work.
type Job struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time        `gorm:"not null;index:idx_jobs_due,priority:4"`
	NotBefore time.Time        `gorm:"not null;index:idx_jobs_due,priority:3"`
	Type      config.JobType   `gorm:"type:varchar(64);not null;index:idx_jobs_due,priority:1"`
	Payload   datatypes.JSON   `gorm:"type:jsonb"`
	Attempts  int              `gorm:"not null;default:0"`
	Status    config.JobStatus `gorm:"type:varchar(16);not null;default:'PENDING';index:idx_jobs_due,priority:2"`
	LastError string           `gorm:"type:text"`
	UpdatedAt time.Time
}

func (Job) TableName() string { return "jobs" }
