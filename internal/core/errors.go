package core

import (
	"errors"
	"fmt"
)

var (
	// ErrProtectedColumn is returned when an operation would remove one of
	// the required columns (To Do, In Progress, Complete).
	ErrProtectedColumn = errors.New("column is protected")

	// ErrDeclined is returned when the user refuses a confirmation prompt.
	ErrDeclined = errors.New("action declined")

	// ErrNoChange is returned by a mutation whose local apply would leave the
	// board untouched. The coordinator skips history and remote for it.
	ErrNoChange = errors.New("no change")
)

// ValidationError reports malformed input that was rejected before any
// state changed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// InvariantViolation reports an operation that referenced state which does
// not exist (unknown IDs, out-of-range indexes). The board is left unchanged.
type InvariantViolation struct {
	Op      string
	Message string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func invariantf(op, format string, args ...any) error {
	return &InvariantViolation{Op: op, Message: fmt.Sprintf(format, args...)}
}
