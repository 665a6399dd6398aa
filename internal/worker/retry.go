package worker

import (
	"context"
	"errors"
	"time"
)

const maxAttempts = 3

// retryBase is the first backoff step; 1s, then 2s.
var retryBase = time.Second

// withRetry calls fn up to attempts times with exponential backoff and
// returns the last error if none succeeds.
func withRetry(ctx context.Context, attempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			wait := retryBase * time.Duration(1<<uint(i-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		err := fn(i)
		if err == nil {
			return nil
		}
		var stop *stopError
		if errors.As(err, &stop) {
			return stop.err
		}
		lastErr = err
	}
	return lastErr
}

// stopError ends withRetry without further attempts.
type stopError struct{ err error }

func (e *stopError) Error() string { return e.err.Error() }
func (e *stopError) Unwrap() error { return e.err }

func stopRetrying(err error) error { return &stopError{err: err} }
