package agent

import (
	"errors"
	"fmt"
	"time"
)

// Common sentinel errors for chat operations. Every typed error below
// unwraps to one of these so callers can branch with errors.Is.
var (
	// ErrMaxIterations indicates the tool-calling loop hit its iteration cap.
	ErrMaxIterations = errors.New("maximum iterations reached")

	// ErrNoProvider indicates no LLM provider is configured.
	ErrNoProvider = errors.New("no provider configured")

	// ErrToolNotFound indicates a requested tool doesn't exist.
	ErrToolNotFound = errors.New("unknown tool")

	// ErrToolPanic indicates a tool panicked during execution.
	ErrToolPanic = errors.New("tool panicked")

	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")
	ErrUnauthorized  = errors.New("authorization error")
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrTimeout       = errors.New("model call timed out")
	ErrUpstream      = errors.New("upstream model error")
	ErrPersistence   = errors.New("persistence error")
)

// ConfigurationError reports a fatal setup problem, such as registering two
// tools under the same name. It surfaces at startup, never per request.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return "configuration: " + e.Message }
func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// ValidationError reports malformed tool arguments. The registry converts it
// into a failed ToolResult so the loop can continue.
type ValidationError struct {
	Tool    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Tool == "" {
		return "invalid arguments: " + e.Message
	}
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// AuthorizationError reports a missing or insufficient actor privilege.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return e.Reason }
func (e *AuthorizationError) Unwrap() error { return ErrUnauthorized }

// RateLimitError aborts a chat call before any model call is made.
type RateLimitError struct {
	Key       string
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: try again in %s", e.ResetIn.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// TimeoutError reports that the model call exceeded its configured deadline.
type TimeoutError struct {
	Timeout time.Duration
	Cause   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("model call timed out after %s", e.Timeout)
}

// Unwrap returns both the sentinel and the underlying cause.
func (e *TimeoutError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrTimeout}
	}
	return []error{ErrTimeout, e.Cause}
}

// UpstreamError carries an error payload returned by the model endpoint.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: upstream error (status %d): %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: upstream error: %s", e.Provider, msg)
}

func (e *UpstreamError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrUpstream}
	}
	return []error{ErrUpstream, e.Cause}
}

// PersistenceError wraps an audit or history write failure. It is only ever
// logged.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Cause} }

// IsControlPlane reports whether err aborts a whole chat call rather than a
// single tool invocation.
func IsControlPlane(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrUpstream)
}
