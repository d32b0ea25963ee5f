package parser

import (
	"context"
	"log"
	"net/http"
	"time"
)

// BackoffOptions configures transient-failure retry behavior
type BackoffOptions struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the second attempt; doubles each retry
}

// DefaultBackoffOptions returns the standard policy: 3 attempts, 1s then 2s.
func DefaultBackoffOptions() *BackoffOptions {
	return &BackoffOptions{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
	}
}

// DoWithBackoff runs fn, retrying with exponential backoff only while the
// response is HTTP 429. Other failures are surfaced immediately; after the
// attempt cap the last response is returned unmodified.
func DoWithBackoff(ctx context.Context, opts *BackoffOptions, fn func() (*http.Response, error)) (*http.Response, error) {
	if opts == nil {
		opts = DefaultBackoffOptions()
	}

	delay := opts.BaseDelay
	for attempt := 1; ; attempt++ {
		resp, err := fn()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= opts.MaxAttempts {
			return resp, nil
		}

		resp.Body.Close()
		log.Printf("Rate limited (attempt %d/%d), backing off %v", attempt, opts.MaxAttempts, delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
	}
}
