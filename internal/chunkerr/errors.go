// Package chunkerr defines the error taxonomy shared by the partitioning,
// windowing, dispatch and engine packages.
//
// Every structural failure is a *Error carrying a Code plus the dimension
// and expected-vs-actual counts needed to diagnose it. Callers match
// categories with errors.Is against the sentinel values, or with the
// Is* helpers, both of which see through %w wrapping.
package chunkerr

import (
	"errors"
	"fmt"
)

// Code categorizes errors.
type Code string

const (
	// CodeConfiguration covers invalid block specs, non-positive counts and
	// halo buffers that are not smaller than the chunk core.
	CodeConfiguration Code = "CONFIGURATION"

	// CodeDimensionNotFound indicates a requested dimension is absent.
	CodeDimensionNotFound Code = "DIMENSION_NOT_FOUND"

	// CodeShapeMismatch indicates a list length or schema that cannot be
	// reassembled.
	CodeShapeMismatch Code = "SHAPE_MISMATCH"

	// CodeTaskExecution indicates a failure raised by a task during
	// materialization.
	CodeTaskExecution Code = "TASK_EXECUTION"
)

// Sentinels for errors.Is matching. Only the Code is compared.
var (
	ErrConfiguration     = &Error{Code: CodeConfiguration}
	ErrDimensionNotFound = &Error{Code: CodeDimensionNotFound}
	ErrShapeMismatch     = &Error{Code: CodeShapeMismatch}
	ErrTaskExecution     = &Error{Code: CodeTaskExecution}
)

// Error is the structured error returned by every geochunk package.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Dim is the dimension involved, if any.
	Dim string

	// Expected and Actual hold the compared counts or sizes. Both are -1
	// when not applicable.
	Expected int
	Actual   int

	// Details contains additional context (task key, axis, ...).
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Dim != "" {
		msg += fmt.Sprintf(" (dim=%s", e.Dim)
		if e.Expected >= 0 || e.Actual >= 0 {
			msg += fmt.Sprintf(", expected=%d, actual=%d", e.Expected, e.Actual)
		}
		msg += ")"
	} else if e.Expected >= 0 || e.Actual >= 0 {
		msg += fmt.Sprintf(" (expected=%d, actual=%d)", e.Expected, e.Actual)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetail returns e after recording a key/value detail.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Configuration creates a configuration error.
func Configuration(format string, args ...any) *Error {
	return &Error{
		Code:     CodeConfiguration,
		Message:  fmt.Sprintf(format, args...),
		Expected: -1,
		Actual:   -1,
	}
}

// DimensionNotFound creates an error for a dimension absent from a container.
func DimensionNotFound(dim string, available []string) *Error {
	e := &Error{
		Code:     CodeDimensionNotFound,
		Message:  fmt.Sprintf("container has no dimension %q", dim),
		Dim:      dim,
		Expected: -1,
		Actual:   -1,
	}
	return e.WithDetail("available", fmt.Sprintf("%v", available))
}

// ShapeMismatch creates a shape mismatch error for dim (may be empty).
func ShapeMismatch(dim string, expected, actual int, format string, args ...any) *Error {
	return &Error{
		Code:     CodeShapeMismatch,
		Message:  fmt.Sprintf(format, args...),
		Dim:      dim,
		Expected: expected,
		Actual:   actual,
	}
}

// TaskExecution wraps a failure raised by a task.
func TaskExecution(taskKey, taskName string, cause error) *Error {
	e := &Error{
		Code:     CodeTaskExecution,
		Message:  fmt.Sprintf("task %s failed", taskName),
		Expected: -1,
		Actual:   -1,
		Err:      cause,
	}
	return e.WithDetail("task_key", taskKey)
}

// IsConfiguration returns true if err is a configuration error.
// Uses errors.Is to handle wrapped errors.
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsDimensionNotFound returns true if err is a dimension lookup error.
func IsDimensionNotFound(err error) bool { return errors.Is(err, ErrDimensionNotFound) }

// IsShapeMismatch returns true if err is a shape mismatch error. A task
// execution error wrapping a failed merge also matches.
func IsShapeMismatch(err error) bool { return errors.Is(err, ErrShapeMismatch) }

// IsTaskExecution returns true if err is a task execution error.
func IsTaskExecution(err error) bool { return errors.Is(err, ErrTaskExecution) }

// CodeOf returns the Code of the outermost *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
