package safefetch

import (
	"context"
	"time"
)

// RetryPolicy is the single retry value object callers pass around instead of
// scattering ad hoc backoff loops across fetch call sites. The fetcher itself
// never consults it.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// RetryableFn decides whether an error is worth another attempt. Nil
	// falls back to Retryable.
	RetryableFn func(error) bool
}

// DefaultRetryPolicy retries transient fetch failures with bounded
// exponential backoff.
func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return RetryPolicy{
		MaxAttempts:    maxAttempts,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
	}
}

func (p RetryPolicy) retryable(err error) bool {
	if p.RetryableFn != nil {
		return p.RetryableFn(err)
	}
	return Retryable(err)
}

// Do runs fn up to p.MaxAttempts times, sleeping with doubling backoff
// between attempts while the error stays retryable. The last error is
// returned unwrapped so callers can still classify it.
func Do(ctx context.Context, p RetryPolicy, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := p.InitialBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt == attempts || !p.retryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
	return err
}
