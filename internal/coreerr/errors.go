// Package coreerr defines the error taxonomy shared across the thread,
// mailbox, tasklist, agent loop, and team packages.
package coreerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions with no further structured detail.
var (
	// ErrMaxDelegationDepth indicates a fork would exceed the configured
	// maximum delegation depth.
	ErrMaxDelegationDepth = errors.New("maximum delegation depth exceeded")

	// ErrThreadNotRunning indicates an operation required a RUNNING fork.
	ErrThreadNotRunning = errors.New("thread is not running")

	// ErrShutdown is the sentinel string mailbox waiters resolve with on
	// cancellation; it is also a real error for callers who prefer errors.
	ErrShutdown = errors.New("shutdown")
)

// ShutdownSentinel is the exact string waiters receive on cancellation,
// a literal wire value rather than just an error.
const ShutdownSentinel = "__SHUTDOWN__"

// ValidationError reports malformed input: a missing required tool
// parameter, an unknown task dependency id, a malformed event.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a lookup miss against a thread/task/mailbox/trigger.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFoundError builds a NotFoundError.
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// ConflictError reports a duplicate-creation attempt, such as a teammate
// name already registered.
type ConflictError struct {
	Kind string
	Key  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Kind, e.Key)
}

// NewConflictError builds a ConflictError.
func NewConflictError(kind, key string) *ConflictError {
	return &ConflictError{Kind: kind, Key: key}
}

// AuthError reports an OAuth or credential failure, with remediation text
// meant to be surfaced to the user verbatim.
type AuthError struct {
	Remediation string
	Err         error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth error: %v (%s)", e.Err, e.Remediation)
	}
	return fmt.Sprintf("auth error: %s", e.Remediation)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError builds an AuthError.
func NewAuthError(remediation string, cause error) *AuthError {
	return &AuthError{Remediation: remediation, Err: cause}
}

// ToolFailure wraps an error raised by tool execution. Per the
// propagation policy, the run loop never lets this escape the turn: it is
// captured into the ToolResponse's output string instead. The type exists
// so tests and logging can distinguish tool failures from everything else.
type ToolFailure struct {
	ToolName string
	Err      error
}

func (e *ToolFailure) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.ToolName, e.Err)
}

func (e *ToolFailure) Unwrap() error { return e.Err }

// NewToolFailure builds a ToolFailure.
func NewToolFailure(toolName string, cause error) *ToolFailure {
	return &ToolFailure{ToolName: toolName, Err: cause}
}

// ProviderError reports a streaming disconnect or model refusal from an
// LLMProvider. It terminates the current agent's turn but never the
// process; other agents keep running.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %q: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError builds a ProviderError.
func NewProviderError(provider string, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Err: cause}
}

// FatalError reports an unrecoverable startup condition. Callers at the
// top of the process should log it and exit non-zero.
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("fatal: %s", e.Reason)
}

func (e *FatalError) Unwrap() error { return e.Err }

// NewFatalError builds a FatalError.
func NewFatalError(reason string, cause error) *FatalError {
	return &FatalError{Reason: reason, Err: cause}
}
