package agentcore

import (
	"errors"
	"fmt"
)

// StateValidationError signals a broken StateManager invariant. The run
// loop recovers by resetting the StateManager and restarting the turn.
type StateValidationError struct {
	Component string
	Message   string
}

func (e *StateValidationError) Error() string {
	return fmt.Sprintf("state validation failed in %s: %s", e.Component, e.Message)
}

func NewStateValidationError(component, message string) *StateValidationError {
	return &StateValidationError{Component: component, Message: message}
}

// RetryableTransportError wraps an LLM transport failure the run loop's
// classifier judged retryable.
type RetryableTransportError struct {
	Cause error
}

func (e *RetryableTransportError) Error() string {
	return fmt.Sprintf("retryable transport error: %v", e.Cause)
}

func (e *RetryableTransportError) Unwrap() error { return e.Cause }

// NonRetryableTransportError wraps an LLM transport failure the run
// loop's classifier judged permanent (auth, invalid argument, ...).
type NonRetryableTransportError struct {
	Cause error
}

func (e *NonRetryableTransportError) Error() string {
	return fmt.Sprintf("non-retryable transport error: %v", e.Cause)
}

func (e *NonRetryableTransportError) Unwrap() error { return e.Cause }

// ToolError is the in-band error a tool reports via its ToolResult
// instead of raising. It never leaves the current turn's context; the
// next LLM turn gets to see it and react.
type ToolError struct {
	ToolName string
	Message  string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q error: %s", e.ToolName, e.Message)
}

// ToolRecoverableError is raised by a tool invocation and classified by
// the ToolOrchestrator into a recovery strategy (§4.6).
type ToolRecoverableError struct {
	ToolName string
	Class    ToolErrorClass
	Cause    error
}

func (e *ToolRecoverableError) Error() string {
	return fmt.Sprintf("tool %q failed (%s): %v", e.ToolName, e.Class, e.Cause)
}

func (e *ToolRecoverableError) Unwrap() error { return e.Cause }

// ToolErrorClass is the classification bucket a ToolRecoverableError
// falls into, driving which recovery strategy the orchestrator tries.
type ToolErrorClass string

const (
	ToolErrorFileNotFound     ToolErrorClass = "file_not_found"
	ToolErrorPermissionDenied ToolErrorClass = "permission_denied"
	ToolErrorCommandFailed    ToolErrorClass = "command_failed"
	ToolErrorTimeout          ToolErrorClass = "timeout"
	ToolErrorResourceExhausted ToolErrorClass = "resource_exhausted"
	ToolErrorUnknown           ToolErrorClass = "unknown"
)

// BudgetExceeded signals that context assembly could not fit even the
// minimal emergency payload (core goal + current user message) under
// the configured token limit.
type BudgetExceeded struct {
	Available int
	Required  int
}

func (e *BudgetExceeded) Error() string {
	return fmt.Sprintf("context budget exceeded: need at least %d tokens, have %d available", e.Required, e.Available)
}

// CircuitBreakerKind distinguishes which guard rail tripped.
type CircuitBreakerKind string

const (
	CircuitBreakerEventCap      CircuitBreakerKind = "event_cap"
	CircuitBreakerWallClock     CircuitBreakerKind = "wall_clock"
	CircuitBreakerConsecutiveErr CircuitBreakerKind = "consecutive_errors"
)

// CircuitBreakerTrip signals that a per-attempt guard rail (event count
// or wall-clock) forced termination of a runaway invocation.
type CircuitBreakerTrip struct {
	Kind    CircuitBreakerKind
	Limit   interface{}
	Message string
}

func (e *CircuitBreakerTrip) Error() string {
	return fmt.Sprintf("circuit breaker tripped (%s): %s", e.Kind, e.Message)
}

// IsStateValidationError reports whether err is (or wraps) a StateValidationError.
func IsStateValidationError(err error) bool {
	var target *StateValidationError
	return errors.As(err, &target)
}

// IsRetryableTransportError reports whether err is (or wraps) a RetryableTransportError.
func IsRetryableTransportError(err error) bool {
	var target *RetryableTransportError
	return errors.As(err, &target)
}

// IsCircuitBreakerTrip reports whether err is (or wraps) a CircuitBreakerTrip.
func IsCircuitBreakerTrip(err error) bool {
	var target *CircuitBreakerTrip
	return errors.As(err, &target)
}
