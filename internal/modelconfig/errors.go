package modelconfig

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a configuration id that does not exist. Delete is the
// one operation that swallows it, so repeated deletes stay idempotent.
var ErrNotFound = errors.New("model configuration not found")

// ValidationError marks caller mistakes: out-of-range parameters or an
// unknown provider without explicit connection details. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
