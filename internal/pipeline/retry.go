package pipeline

import (
	"context"
	"time"

	"github.com/jonathan/venture-planner/internal/generation"
)

// RetryPolicy bounds exponential backoff for a stage call.
// Only provider failures are retried; every stage is idempotent.
type RetryPolicy struct {
	MaxAttempts    int           `json:"max_attempts" yaml:"max_attempts"`
	InitialBackoff time.Duration `json:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     time.Duration `json:"max_backoff" yaml:"max_backoff"`
	Multiplier     float64       `json:"multiplier" yaml:"multiplier"`
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		Multiplier:     2,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.MaxBackoff > 0 && p.InitialBackoff > p.MaxBackoff {
		p.InitialBackoff = p.MaxBackoff
	}
	return p
}

// Do calls fn until it succeeds, returns a non-retryable error, or attempts run out.
// It returns the number of attempts made. Backoff waits end early when ctx is done.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	p = p.normalized()
	backoff := p.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || attempt >= p.MaxAttempts || !generation.Retryable(err) || ctx.Err() != nil {
			return attempt, err
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * p.Multiplier)
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
}
