package agent

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMalformedToolCall marks a model response whose native tool call
	// the provider rejected.
	ErrMalformedToolCall = errors.New("malformed tool call")

	// ErrEmptyResponse is returned when the provider answered with nothing.
	ErrEmptyResponse = errors.New("empty model response")

	// ErrRetriesExhausted is returned when every supervised attempt failed.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// ModelCallError wraps a failed provider call.
type ModelCallError struct {
	Provider string
	Err      error
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("model call failed (%s): %v", e.Provider, e.Err)
}

func (e *ModelCallError) Unwrap() error { return e.Err }

// TimeoutError is returned when an attempt outlived the supervisor timeout.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("model call timed out after %s", e.After)
}
