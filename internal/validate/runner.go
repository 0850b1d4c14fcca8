package validate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Retry bounds how transient failures are retried.
type Retry struct {
	Attempts  int           // Total attempts, including the first
	BaseDelay time.Duration // Delay before the second attempt; doubles after
}

// DefaultRetry is 3 attempts with exponential backoff from 500ms.
var DefaultRetry = Retry{Attempts: 3, BaseDelay: 500 * time.Millisecond}

// Runner ties validators to the per-job cache and retry policy. One Runner
// is constructed per job; its cache namespace is the job ID.
type Runner struct {
	jobID      string
	cache      *Cache
	retry      Retry
	validators map[Family]Validator
	sleep      func(context.Context, time.Duration) error
}

// NewRunner creates a Runner for the given job.
func NewRunner(jobID string, cache *Cache, retry Retry, validators ...Validator) *Runner {
	if retry.Attempts <= 0 {
		retry = DefaultRetry
	}
	byFamily := make(map[Family]Validator, len(validators))
	for _, v := range validators {
		byFamily[v.Family()] = v
	}
	return &Runner{
		jobID:      jobID,
		cache:      cache,
		retry:      retry,
		validators: byFamily,
		sleep:      sleepCtx,
	}
}

// Validate resolves the identifier via cache or registry. Not-found is
// returned as a definitive Result, not an error; transient failures are
// retried up to the configured bound and then surfaced wrapping ErrTransient.
func (r *Runner) Validate(ctx context.Context, id Identifier) (*Result, error) {
	v, ok := r.validators[id.Family]
	if !ok {
		return nil, fmt.Errorf("%w: no validator for family %q", ErrInvalidFormat, id.Family)
	}

	key := id.Key(r.jobID)
	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}

	var lastErr error
	delay := r.retry.BaseDelay
	for attempt := 1; attempt <= r.retry.Attempts; attempt++ {
		if attempt > 1 {
			if err := r.sleep(ctx, jitter(delay)); err != nil {
				return nil, err
			}
			delay *= 2
		}

		res, err := v.Validate(ctx, id.Value)
		if err == nil {
			r.cache.Put(key, res)
			return res, nil
		}
		if !errors.Is(err, ErrTransient) {
			return nil, err
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("validating %s after %d attempts: %w", id, r.retry.Attempts, lastErr)
}

// jitter spreads retries by up to 25% to avoid thundering on a recovering
// registry.
func jitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(d)/4+1))
}

// sleepCtx sleeps for d or until the context is cancelled.
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
