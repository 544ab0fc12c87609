package services

import (
	"errors"
	"fmt"
	"time"
)

// Guard rejections raised before any provider call
var (
	ErrAlreadyResolved = errors.New("failure record already resolved")
	ErrRetryInProgress = errors.New("retry already in progress")
)

// GuardError is a domain precondition violation. Handlers map it to a 400;
// no failure record is created for a guard rejection.
type GuardError struct {
	Reason string
}

func (e *GuardError) Error() string {
	return e.Reason
}

// NewGuardError creates a guard rejection with the given reason
func NewGuardError(format string, args ...interface{}) *GuardError {
	return &GuardError{Reason: fmt.Sprintf(format, args...)}
}

// IsGuardError reports whether err is a guard rejection
func IsGuardError(err error) bool {
	var ge *GuardError
	return errors.As(err, &ge)
}

// RetryNotDueError rejects a retry attempted before its scheduled time
type RetryNotDueError struct {
	NextRetryAt time.Time
}

func (e *RetryNotDueError) Error() string {
	return fmt.Sprintf("retry not due until %s", e.NextRetryAt.UTC().Format(time.RFC3339))
}

// ProviderError wraps a failed provider call after its failure record has
// been persisted, so the handler can point the caller at the record.
type ProviderError struct {
	FailureID string
	Message   string
}

func (e *ProviderError) Error() string {
	return e.Message
}
