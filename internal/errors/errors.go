package errors

import (
	"errors"
)

// Sentinel errors for different categories
var (
	// ErrInvalidInput - caller supplied an unusable request (empty history, duplicate tool names)
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound - tool or resource not found
	ErrNotFound = errors.New("not found")

	// ErrTransport - network failure while talking to the completions API
	ErrTransport = errors.New("transport error")

	// ErrHTTPStatus - completions API answered with a non-success status
	ErrHTTPStatus = errors.New("unexpected http status")

	// ErrToolLoopExceeded - model kept requesting tools past the configured round limit
	ErrToolLoopExceeded = errors.New("tool loop exceeded")

	// ErrIdleTimeout - no bytes arrived from the stream within the idle window
	ErrIdleTimeout = errors.New("stream idle timeout")

	// ErrTransient - transient error (caller may retry)
	ErrTransient = errors.New("transient error")

	// ErrInternal - internal error
	ErrInternal = errors.New("internal error")
)
