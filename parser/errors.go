package parser

import (
	"errors"
	"fmt"
)

// ErrNoMatch means the pipeline found nothing for a field. Not inherently
// fatal; a parse fails only if price is still null after all rules and any
// fallback.
var ErrNoMatch = errors.New("no extraction rule produced a value")

// ConfigurationError means missing credentials or settings. Fatal, no retry.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Msg)
}

// ValidationError means the identifier is malformed. Fatal, no retry.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Msg)
}

// TransientError is a transport or HTTP failure. Retried per the backoff
// policy where applicable, then surfaced.
type TransientError struct {
	Msg        string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transient error (HTTP %d): %s", e.StatusCode, e.Msg)
	}
	return fmt.Sprintf("transient error: %s", e.Msg)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// UpstreamError is an unexpected response shape, an API error list or an
// item-not-found. Surfaced, never retried. Body carries a truncated raw
// response body for diagnostics.
type UpstreamError struct {
	Msg        string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream error (HTTP %d): %s", e.StatusCode, e.Msg)
	}
	return fmt.Sprintf("upstream error: %s", e.Msg)
}

const maxErrorBody = 512

// truncateBody keeps enough of a raw error body to debug without re-running
func truncateBody(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
