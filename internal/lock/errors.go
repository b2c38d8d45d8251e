package lock

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument = errors.New("lock invalid argument")
	// ErrConflict means the lease no longer belongs to the caller.
	ErrConflict       = errors.New("lock conflict")
	ErrNotInitialized = errors.New("lock provider not initialized")
)

func lockError(kind error, message string) error {
	if message == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, message)
}
