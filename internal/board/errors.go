package board

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by every operation referencing an unknown task id.
var ErrNotFound = errors.New("task not found")

// ValidationError marks caller mistakes (bad channel, bad status value,
// malformed schedule, malformed settings). They never affect other tasks.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// Invalidf builds a ValidationError.
func Invalidf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
