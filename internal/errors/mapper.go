package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultErrorMapper classifies failures talking to the completions API
type DefaultErrorMapper struct{}

func NewDefaultErrorMapper() *DefaultErrorMapper {
	return &DefaultErrorMapper{}
}

// MapError classifies a raw client error that does not already carry a
// kaiwa sentinel. The cause stays reachable through errors.Is.
func (m *DefaultErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	if hasSentinel(err) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timeout: %w: %w", ErrTransient, err)
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "rate limit"), strings.Contains(errStr, "too many requests"):
		return fmt.Errorf("rate limited: %w: %w", ErrTransient, err)

	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return fmt.Errorf("request timeout: %w: %w", ErrTransient, err)

	default:
		return fmt.Errorf("network error: %w: %w", ErrTransport, err)
	}
}

// Category returns the sentinel name an error belongs to. Used as a log field.
func (m *DefaultErrorMapper) Category(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrToolLoopExceeded):
		return "ErrToolLoopExceeded"
	case errors.Is(err, ErrIdleTimeout):
		return "ErrIdleTimeout"
	case errors.Is(err, ErrHTTPStatus):
		return "ErrHTTPStatus"
	case errors.Is(err, ErrTransient):
		return "ErrTransient"
	case errors.Is(err, ErrTransport):
		return "ErrTransport"
	case errors.Is(err, ErrInvalidInput):
		return "ErrInvalidInput"
	case errors.Is(err, ErrNotFound):
		return "ErrNotFound"
	case errors.Is(err, ErrInternal):
		return "ErrInternal"
	default:
		return "Unknown"
	}
}

func hasSentinel(err error) bool {
	for _, sentinel := range []error{
		ErrInvalidInput, ErrNotFound, ErrTransport, ErrHTTPStatus, ErrToolLoopExceeded,
		ErrIdleTimeout, ErrTransient, ErrInternal,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// InvalidInput wraps error as invalid input
func InvalidInput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidInput)
}

// Transport wraps a network failure, keeping the cause reachable through errors.Is.
func Transport(message string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", message, ErrTransport)
	}
	return fmt.Errorf("%s: %w: %w", message, ErrTransport, cause)
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("api error %d: %s", e.code, ErrHTTPStatus)
	}
	return fmt.Sprintf("api error %d: %s: %s", e.code, e.body, ErrHTTPStatus)
}

func (e *statusError) Unwrap() error { return ErrHTTPStatus }

// HTTPStatus reports a non-success response together with its body.
func HTTPStatus(code int, body string) error {
	return &statusError{code: code, body: strings.TrimSpace(body)}
}

// IsRetryable reports whether a failed exchange may be retried by the caller.
// Rate limits (429) and server errors (5xx) count as retryable statuses.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var status *statusError
	if errors.As(err, &status) {
		return status.code == 429 || status.code >= 500
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTransport) || errors.Is(err, ErrIdleTimeout)
}
