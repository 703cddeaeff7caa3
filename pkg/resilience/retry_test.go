package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "op", fast(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	boom := errors.New("down")
	calls := 0
	err := Retry(context.Background(), "op", fast(2), func() error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
	assert.Contains(t, err.Error(), "all 2 attempts failed for op")
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	permanent := errors.New("constraint violated")
	cfg := fast(5)
	cfg.Retryable = func(err error) bool { return !errors.Is(err, permanent) }
	calls := 0
	err := Retry(context.Background(), "op", cfg, func() error {
		calls++
		return permanent
	})
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryDoesNotRetryCancellation(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "op", fast(5), func() error {
		calls++
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryAbortsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "op", fast(5), func() error { return errors.New("transient") })
	require.ErrorIs(t, err, context.Canceled)
}

func TestComputeDelayIsCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 10, JitterFraction: 0.1}
	assert.Equal(t, 3*time.Second, computeDelay(4, cfg))
	d := computeDelay(1, cfg)
	assert.GreaterOrEqual(t, d, 900*time.Millisecond)
	assert.LessOrEqual(t, d, 1100*time.Millisecond)
}
