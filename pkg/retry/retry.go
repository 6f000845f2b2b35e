// Package retry re-runs idempotent reads that failed with a transient error.
package retry

import (
	"context"
	"time"

	"github.com/yatri-app/backend/internal/apperr"
)

// Policy bounds the retries. Backoff doubles after every failed attempt.
type Policy struct {
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// DefaultPolicy is used for directory, history and pending-list reads.
var DefaultPolicy = Policy{Attempts: 3, Backoff: 200 * time.Millisecond, MaxBackoff: 2 * time.Second}

// Do calls fn until it succeeds, returns a non-transient error, the attempts
// are used up, or ctx is done. Only use it for idempotent operations.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil || !apperr.IsTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		backoff *= 2
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
	return err
}
