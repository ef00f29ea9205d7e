package featureql

import (
	"errors"
	"fmt"

	"github.com/hugr-lab/featureql/filter"
)

// ParseError indicates malformed parameter syntax. Always client-fault;
// protocol layers map it to a 400-class response.
type ParseError struct {
	// Parameter is the raw parameter name (e.g. "bbox", "datetime", "filter").
	Parameter string

	// Detail describes the problem and echoes the offending input.
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Parameter, e.Detail)
}

// ValidationError indicates a semantically invalid value or combination of
// values. Client-fault.
type ValidationError struct {
	// Field names the offending field or parameter, including the axis for
	// bbox errors (e.g. "bbox.x").
	Field string

	// Detail describes the violated constraint.
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}

// UnsupportedOperationError indicates the client requested a capability the
// engine or the configured backend cannot honor. Distinct from ParseError so
// protocol layers can render a clearer message.
type UnsupportedOperationError struct {
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return "unsupported operation: " + e.Operation
}

// CapacityExceededError indicates an unbounded query crossed the configured
// safety ceiling. Client-fault; the remedy is pagination.
type CapacityExceededError struct {
	Ceiling int64
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("result set exceeds the unbounded-query ceiling of %d records; use limit/offset pagination", e.Ceiling)
}

// BackendError indicates an execution-time failure in the storage layer.
// Server-fault; never retried inside the engine since the query may have
// been mid-stream.
type BackendError struct {
	Cause error
}

func (e *BackendError) Error() string {
	return "backend error: " + e.Cause.Error()
}

func (e *BackendError) Unwrap() error { return e.Cause }

// CancelledError indicates caller-initiated cancellation or an expired
// deadline. Neither client- nor server-fault.
type CancelledError struct {
	Cause error
}

func (e *CancelledError) Error() string {
	if e.Cause == nil {
		return "query cancelled"
	}
	return "query cancelled: " + e.Cause.Error()
}

func (e *CancelledError) Unwrap() error { return e.Cause }

// wrapFilterError converts filter package errors into the engine taxonomy,
// preserving the structured detail each kind carries.
func wrapFilterError(err error) error {
	var unknownField *filter.UnknownFieldError
	if errors.As(err, &unknownField) {
		return &ValidationError{Field: unknownField.Field, Detail: "unknown field in filter"}
	}
	var semantic *filter.SemanticError
	if errors.As(err, &semantic) {
		return &ValidationError{Field: semantic.Field, Detail: semantic.Detail}
	}
	var unsupported *filter.UnsupportedOperatorError
	if errors.As(err, &unsupported) {
		return &UnsupportedOperationError{Operation: unsupported.Operator}
	}
	return &ParseError{Parameter: "filter", Detail: err.Error()}
}
