package models

import "errors"

var (
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotPending is returned when an outcome is written for a job that
	// already reached a terminal status.
	ErrJobNotPending = errors.New("job is not pending")
)
