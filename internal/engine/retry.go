package engine

import (
	"context"
	"time"

	"modelsync/internal/gateway"
)

// RetryPolicy controls retry of transient gateway failures, scoped per task.
// Non-transient kinds (access denied, corrupt model, sync conflict) are never
// retried.
type RetryPolicy struct {
	// MaxAttempts is the number of retries after the first attempt.
	MaxAttempts int

	// BackoffBase is the pause before the first retry; it doubles for each
	// subsequent one.
	BackoffBase time.Duration
}

// Retryable reports whether err may succeed on a later attempt.
func (p RetryPolicy) Retryable(err error) bool {
	return gateway.IsTransient(err)
}

// Backoff returns the pause before retry number retry (1-based).
func (p RetryPolicy) Backoff(retry int) time.Duration {
	if p.BackoffBase <= 0 || retry < 1 {
		return 0
	}
	d := p.BackoffBase
	for i := 1; i < retry; i++ {
		d *= 2
	}
	return d
}

// sleepCtx pauses for d without holding a worker busy, returning early with
// the context's error when the run is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
