package scholar

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrNotFound indicates the paper was not found.
	ErrNotFound = errors.New("paper not found")

	// ErrAuth indicates an authentication error (missing/invalid API key).
	ErrAuth = errors.New("semantic scholar authentication error")

	// ErrRateLimited indicates the rate limit has been exceeded.
	ErrRateLimited = errors.New("semantic scholar rate limit exceeded")

	// ErrTransient indicates a retryable condition (429/5xx or network
	// failure) that persisted after the retry budget was exhausted.
	ErrTransient = errors.New("transient fetch error")

	// ErrSchema indicates a malformed or unexpected API payload.
	// Schema errors are never retried.
	ErrSchema = errors.New("malformed response from semantic scholar")
)

// APIError carries HTTP detail for an API failure.
type APIError struct {
	StatusCode int
	Message    string
	PaperID    string // for context in paper-related errors
}

func (e *APIError) Error() string {
	if e.PaperID != "" {
		return fmt.Sprintf("semantic scholar API error (status %d): %s (paper: %s)", e.StatusCode, e.Message, e.PaperID)
	}
	return fmt.Sprintf("semantic scholar API error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound returns true if the error indicates a missing paper.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return false
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// IsTransient returns true for errors that exhausted the retry budget.
// The caller should treat these as a sign of provider trouble rather than
// bad data.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsSchema returns true for malformed-payload errors.
func IsSchema(err error) bool {
	return errors.Is(err, ErrSchema)
}
