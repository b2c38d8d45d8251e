package job

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidType    = errors.New("invalid job type")
	ErrSerialization  = errors.New("payload serialization failed")
	ErrInvalidPayload = errors.New("payload validation failed")
)

// PayloadError carries per-field validation failures for a payload.
type PayloadError struct {
	Fields map[string]any
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("%s: %d invalid field(s)", ErrInvalidPayload, len(e.Fields))
}

func (e *PayloadError) Unwrap() error {
	return ErrInvalidPayload
}

func jobError(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
