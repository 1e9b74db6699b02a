package llm

import "fmt"

// TimeoutError marks an attempt that exceeded its deadline. The caller
// may retry such attempts.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("model call timed out: %v", e.Err) }
func (e *TimeoutError) Unwrap() error { return e.Err }

// ParseError marks a response whose content could not be parsed as the
// declared schema. The caller may retry such attempts.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("model response unparsable: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// UpstreamError marks any other transport or HTTP-level failure from
// the provider. Not retried.
type UpstreamError struct {
	Status int
	Detail string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("model upstream error (status %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("model upstream error: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
