// Package embedding defines the embedding provider contract and the
// decorators that make a remote provider safe to call from request handlers.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrProviderUnavailable marks a transient failure: network error,
	// timeout or a 5xx from the provider. Callers may retry with backoff.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
	// ErrRateLimited marks a provider-side rate limit. See RateLimitedError.
	ErrRateLimited = errors.New("embedding provider rate limited")
	// ErrRetriesExhausted wraps the last transient error once the retry
	// budget is spent.
	ErrRetriesExhausted = errors.New("embedding retries exhausted")
	// ErrDimensionMismatch is returned when a vector's length differs from
	// the dimension established by earlier vectors.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Provider maps text to a fixed-length vector.
type Provider interface {
	Name() string
	// Dimension returns the vector length, or 0 if not yet known.
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RateLimitedError carries the provider's retry hint, if any.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", ErrRateLimited, e.RetryAfter)
	}
	return ErrRateLimited.Error()
}

// Is lets errors.Is(err, ErrRateLimited) match.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrRateLimited)
}

// RetryAfter extracts the provider's retry hint from err, or 0.
func RetryAfter(err error) time.Duration {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}
