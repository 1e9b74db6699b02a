package engine

import (
	"errors"
	"fmt"

	"talentworth/internal/validate"
)

// ErrNotEntitled is the business decision that the caller's
// subscription does not permit paid analysis.
var ErrNotEntitled = errors.New("premium subscription required")

// ValidationError carries the complete set of field violations.
type ValidationError struct {
	Fields []validate.FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("input validation failed (%d field errors)", len(e.Fields))
}

// EntitlementLookupError marks a profile read that itself failed,
// distinct from a not-entitled decision.
type EntitlementLookupError struct {
	Err error
}

func (e *EntitlementLookupError) Error() string {
	return fmt.Sprintf("entitlement lookup failed: %v", e.Err)
}

func (e *EntitlementLookupError) Unwrap() error { return e.Err }

// InfraError marks a persistence failure in the request lifecycle.
type InfraError struct {
	Op        string
	RequestID string
	Err       error
}

func (e *InfraError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *InfraError) Unwrap() error { return e.Err }

// ModelTimeoutError means every attempt exceeded its deadline. The
// tracking request is already marked failed.
type ModelTimeoutError struct {
	RequestID string
}

func (e *ModelTimeoutError) Error() string {
	return fmt.Sprintf("model analysis timed out (request %s)", e.RequestID)
}

// ModelParseError means every attempt returned unparsable or
// semantically incomplete output.
type ModelParseError struct {
	RequestID string
}

func (e *ModelParseError) Error() string {
	return fmt.Sprintf("model response could not be parsed (request %s)", e.RequestID)
}

// ModelUpstreamError is any other provider failure. Never retried.
type ModelUpstreamError struct {
	RequestID string
	Status    int
}

func (e *ModelUpstreamError) Error() string {
	return fmt.Sprintf("model provider error (request %s, status %d)", e.RequestID, e.Status)
}
