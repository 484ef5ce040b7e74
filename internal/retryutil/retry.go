// Package retryutil retries transient failures with a fixed delay.
// Callers mark non-retryable errors with Stop.
package retryutil

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = 2 * time.Second
)

type stopError struct{ err error }

func (e *stopError) Error() string { return e.err.Error() }
func (e *stopError) Unwrap() error { return e.err }

// Stop wraps err so Do returns it immediately instead of retrying.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &stopError{err: err}
}

// Do runs fn up to attempts times, sleeping delay between tries. Only
// use it for idempotent operations.
func Do(ctx context.Context, attempts int, delay time.Duration, fn func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err = fn(ctx)
		if err == nil {
			return nil
		}
		var stop *stopError
		if errors.As(err, &stop) {
			return stop.err
		}
	}
	return err
}
