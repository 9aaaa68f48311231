package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSource is returned when a run is started without an input source.
	ErrNoSource = errors.New("rowpipe: no input source configured")
	// ErrNoConverter is returned when a run is started without a converter.
	ErrNoConverter = errors.New("rowpipe: no converter configured")
	// ErrNoSink is returned by a Writer constructed without a sink.
	ErrNoSink = errors.New("rowpipe: no output sink configured")
	// ErrConsumed is returned when a single-use Reader is read a second time.
	ErrConsumed = errors.New("rowpipe: reader already consumed")
	// ErrPoolRejected is returned by the pool once it stopped accepting tasks.
	ErrPoolRejected = errors.New("rowpipe: pool is not accepting tasks")
	// ErrAwaitTimeout is returned when workers did not finish within the await timeout.
	ErrAwaitTimeout = errors.New("rowpipe: timed out waiting for workers to finish")
	// ErrTooManyErrors is raised when captured domain errors exceed the capture limit.
	ErrTooManyErrors = errors.New("rowpipe: too many captured errors")
)

// ErrorKind is a machine-readable classification of a domain error.
type ErrorKind string

// Domain error kinds. These are the expected, per-item failures a converter reports.
const (
	// KindRequiredMissing indicates a required value was absent or empty.
	KindRequiredMissing ErrorKind = "REQUIRED_MISSING"
	// KindTypeMismatch indicates a value could not be converted to the target type.
	KindTypeMismatch ErrorKind = "TYPE_MISMATCH"
	// KindConstraint indicates a structural or business constraint was violated.
	KindConstraint ErrorKind = "CONSTRAINT_VIOLATION"
)

// DomainError is an anticipated conversion failure for a single item.
//
// Converters return a *DomainError (directly or wrapped) to signal that the
// item is bad but the run itself is healthy. In capture mode such errors are
// collected; in throw mode the first one aborts the run.
type DomainError struct {
	// Kind classifies the failure.
	Kind ErrorKind
	// Field is the column or attribute the failure relates to, if any.
	Field string
	// Value is the offending raw value, if any.
	Value string
	// Message is a human-readable description.
	Message string
	// Cause is the underlying error, if any.
	Cause error
}

// Error returns the string representation of the error.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Field != "" {
		msg = fmt.Sprintf("%s: field %q: %s", e.Kind, e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (cause: %v)", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause of the error.
func (e *DomainError) Unwrap() error { return e.Cause }

// Is reports whether target is a *DomainError of the same kind.
// A target with an empty Kind matches any domain error.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// RequiredMissing creates a DomainError for a missing required field.
func RequiredMissing(field string) *DomainError {
	return &DomainError{
		Kind:    KindRequiredMissing,
		Field:   field,
		Message: "required value is missing",
	}
}

// TypeMismatch creates a DomainError for a value that cannot be converted to target.
func TypeMismatch(field, value, target string) *DomainError {
	return &DomainError{
		Kind:    KindTypeMismatch,
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("cannot convert %q to %s", value, target),
	}
}

// ConstraintViolation creates a DomainError for a violated constraint.
func ConstraintViolation(field, reason string) *DomainError {
	return &DomainError{
		Kind:    KindConstraint,
		Field:   field,
		Message: reason,
	}
}

// IsDomainError reports whether err is, or wraps, a *DomainError.
// It is the default classifier used to separate expected from unexpected errors.
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// IsKind reports whether err is, or wraps, a *DomainError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return errors.Is(err, &DomainError{Kind: kind})
}

// ConversionError is the pipeline-level error returned when a run aborts.
//
// It wraps the first error recorded by the run together with the position of
// the item that caused it. When several items fail concurrently only the one
// that won the race to the terminal slot is reported.
type ConversionError struct {
	// Sequence is the 1-based submission position of the failing item (0 if unknown).
	Sequence int64
	// Line is the source line of the failing item (0 if unknown).
	Line int64
	// Input is the raw item that failed, if known.
	Input any
	// Err is the recorded error.
	Err error
}

// Error returns the string representation of the error.
func (e *ConversionError) Error() string {
	switch {
	case e.Sequence > 0 && e.Line > 0:
		return fmt.Sprintf("rowpipe: item %d (line %d): %v", e.Sequence, e.Line, e.Err)
	case e.Sequence > 0:
		return fmt.Sprintf("rowpipe: item %d: %v", e.Sequence, e.Err)
	default:
		return fmt.Sprintf("rowpipe: %v", e.Err)
	}
}

// Unwrap returns the recorded error.
func (e *ConversionError) Unwrap() error { return e.Err }

// CapturedError is a domain error collected instead of thrown, tagged with
// the position of the item that produced it.
type CapturedError struct {
	// Sequence is the 1-based submission position of the item.
	Sequence int64
	// Line is the source line of the item (0 if unknown).
	Line int64
	// Input is the raw item.
	Input any
	// Err is the domain error.
	Err error
}

// Error returns the string representation of the error.
func (e *CapturedError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("item %d (line %d): %v", e.Sequence, e.Line, e.Err)
	}
	return fmt.Sprintf("item %d: %v", e.Sequence, e.Err)
}

// Unwrap returns the domain error.
func (e *CapturedError) Unwrap() error { return e.Err }
