package lock

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

func newToken() string {
	return uuid.NewString()
}

// DefaultOwner names this process in lock rows, e.g. "worker-7c9f:4211".
func DefaultOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
