package embedding

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Shivanand-hulikatti/advisor-match/internal/logger"
)

// Policy bounds retries of transient provider errors.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Timeout bounds each individual attempt.
	Timeout time.Duration
}

// DefaultPolicy mirrors the config defaults.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  4,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  10 * time.Second,
		Timeout:   30 * time.Second,
	}
}

type retrying struct {
	next   Provider
	policy Policy
	log    *logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps p so that every call is bounded by policy.Timeout and
// transient failures are retried with exponential backoff.
func WithRetry(p Provider, policy Policy, log *logger.Logger) Provider {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultPolicy().BaseDelay
	}
	if policy.MaxDelay < policy.BaseDelay {
		policy.MaxDelay = policy.BaseDelay
	}
	if log == nil {
		log = logger.Nop()
	}
	return &retrying{next: p, policy: policy, log: log, sleep: sleepCtx}
}

func (r *retrying) Name() string   { return r.next.Name() }
func (r *retrying) Dimension() int { return r.next.Dimension() }

func (r *retrying) Embed(ctx context.Context, text string) ([]float32, error) {
	backoff := r.policy.BaseDelay
	var last error
	for attempt := 1; attempt <= r.policy.Attempts; attempt++ {
		vec, err := r.once(ctx, text)
		if err == nil {
			return vec, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsTransient(err) {
			return nil, err
		}
		last = err
		if attempt == r.policy.Attempts {
			break
		}

		wait := jitter(backoff)
		if hint := RetryAfter(err); hint > 0 {
			// a hint past MaxDelay or the deadline is surfaced to the
			// caller instead of parking the request
			if hint > r.policy.MaxDelay || exceedsDeadline(ctx, hint) {
				return nil, err
			}
			wait = hint
		}
		if exceedsDeadline(ctx, wait) {
			return nil, fmt.Errorf("%w: deadline leaves no time to retry: %w", ErrRetriesExhausted, err)
		}
		r.log.Warn("embedding request retrying",
			"provider", r.next.Name(),
			"attempt", attempt,
			"max_attempts", r.policy.Attempts,
			"sleep", wait.String(),
			"error", err.Error(),
		)
		if err := r.sleep(ctx, wait); err != nil {
			return nil, err
		}
		backoff *= 2
		if backoff > r.policy.MaxDelay {
			backoff = r.policy.MaxDelay
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, r.policy.Attempts, last)
}

func (r *retrying) once(ctx context.Context, text string) ([]float32, error) {
	attemptCtx := ctx
	if r.policy.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
		defer cancel()
	}
	vec, err := r.next.Embed(attemptCtx, text)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: no response within %s", ErrProviderUnavailable, r.policy.Timeout)
	}
	return vec, err
}

func exceedsDeadline(ctx context.Context, d time.Duration) bool {
	deadline, ok := ctx.Deadline()
	return ok && time.Until(deadline) < d
}

// jitter spreads d by ±20%.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	delta := float64(d) * 0.2
	return time.Duration(float64(d) - delta + rand.Float64()*2*delta)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
