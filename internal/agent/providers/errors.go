package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/haasonsaas/toolchat/internal/agent"
)

// FailureReason classifies a provider error for retry decisions.
type FailureReason string

const (
	FailureRateLimit        FailureReason = "rate_limit"
	FailureAuth             FailureReason = "auth"
	FailureTimeout          FailureReason = "timeout"
	FailureServerError      FailureReason = "server_error"
	FailureInvalidRequest   FailureReason = "invalid_request"
	FailureModelUnavailable FailureReason = "model_unavailable"
	FailureUnknown          FailureReason = "unknown"
)

// IsRetryable reports whether a request failing for this reason may succeed
// on a later attempt.
func (r FailureReason) IsRetryable() bool {
	switch r {
	case FailureRateLimit, FailureServerError:
		return true
	default:
		return false
	}
}

// ClassifyError maps an error to a FailureReason. Typed upstream errors are
// classified by status code; anything else by message.
func ClassifyError(err error) FailureReason {
	if err == nil {
		return FailureUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, agent.ErrTimeout) {
		return FailureTimeout
	}
	var ue *agent.UpstreamError
	if errors.As(err, &ue) && ue.StatusCode > 0 {
		return classifyStatusCode(ue.StatusCode)
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "rate limit"),
		strings.Contains(errStr, "rate_limit"),
		strings.Contains(errStr, "too many requests"):
		return FailureRateLimit
	case strings.Contains(errStr, "unauthorized"),
		strings.Contains(errStr, "invalid api key"),
		strings.Contains(errStr, "invalid_api_key"):
		return FailureAuth
	case strings.Contains(errStr, "model not found"),
		strings.Contains(errStr, "model_not_found"):
		return FailureModelUnavailable
	case strings.Contains(errStr, "internal server"),
		strings.Contains(errStr, "server error"),
		strings.Contains(errStr, "overloaded"):
		return FailureServerError
	}
	return FailureUnknown
}

func classifyStatusCode(status int) FailureReason {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return FailureAuth
	case status == http.StatusTooManyRequests:
		return FailureRateLimit
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return FailureInvalidRequest
	case status == http.StatusNotFound:
		return FailureModelUnavailable
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return FailureTimeout
	case status >= 500:
		return FailureServerError
	default:
		return FailureUnknown
	}
}

// wrapError converts a transport or SDK error into the agent error
// taxonomy. Context errors pass through so the caller can attribute them
// to its own deadline.
func wrapError(provider string, status int, message string, err error) error {
	if err == nil {
		return nil
	}
	var ue *agent.UpstreamError
	var te *agent.TimeoutError
	if errors.As(err, &ue) || errors.As(err, &te) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &agent.UpstreamError{
		Provider:   provider,
		StatusCode: status,
		Message:    message,
		Cause:      err,
	}
}
