package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/venture-planner/internal/generation"
	"github.com/jonathan/venture-planner/internal/schemas"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 4, InitialBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond, Multiplier: 2}
}

func TestRetryPolicy_RetriesProviderErrorsOnly(t *testing.T) {
	providerErr := &generation.ProviderError{Stage: schemas.StageRank, Cause: errors.New("503")}

	calls := 0
	attempts, err := fastPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return providerErr
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	calls = 0
	attempts, err = fastPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		return &generation.OutputValidationError{Stage: schemas.StageRank, Contract: "rank.v1"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)

	attempts, err = fastPolicy().Do(context.Background(), func(context.Context) error {
		return providerErr
	})
	assert.ErrorIs(t, err, providerErr)
	assert.Equal(t, 4, attempts)
}

func TestRetryPolicy_BackoffStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Hour, Multiplier: 2}

	time.AfterFunc(10*time.Millisecond, cancel)
	start := time.Now()
	attempts, err := policy.Do(ctx, func(context.Context) error {
		return &generation.ProviderError{Stage: schemas.StageRank, Cause: errors.New("timeout")}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetryPolicy_Normalized(t *testing.T) {
	p := RetryPolicy{InitialBackoff: 10 * time.Second, MaxBackoff: time.Second}.normalized()
	assert.Equal(t, 1, p.MaxAttempts)
	assert.Equal(t, 1.0, p.Multiplier)
	assert.Equal(t, time.Second, p.InitialBackoff)

	d := DefaultRetryPolicy()
	assert.Equal(t, 3, d.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, d.InitialBackoff)
}
