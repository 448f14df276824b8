package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSleeper records requested delays without actually sleeping
type fakeSleeper struct {
	delays []time.Duration
}

func (f *fakeSleeper) sleep(_ context.Context, d time.Duration) error {
	f.delays = append(f.delays, d)
	return nil
}

func testPolicy(sleeper *fakeSleeper) Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		Sleep:        sleeper.sleep,
	}
}

func TestRun_SucceedsFirstAttempt(t *testing.T) {
	sleeper := &fakeSleeper{}
	policy := testPolicy(sleeper)

	calls := 0
	result := policy.Run(context.Background(), nil, func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.delays)
}

func TestRun_RetriesWithExponentialBackoff(t *testing.T) {
	sleeper := &fakeSleeper{}
	policy := testPolicy(sleeper)

	calls := 0
	result := policy.Run(context.Background(), nil, func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("transient failure")
		}
		return nil
	})

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 3, calls)
	require.Len(t, sleeper.delays, 2)
	assert.Equal(t, 1*time.Second, sleeper.delays[0])
	assert.Equal(t, 2*time.Second, sleeper.delays[1])
}

func TestRun_ExhaustsAttempts(t *testing.T) {
	sleeper := &fakeSleeper{}
	policy := testPolicy(sleeper)

	failure := errors.New("persistent failure")
	calls := 0
	result := policy.Run(context.Background(), nil, func(ctx context.Context, attempt int) error {
		calls++
		return failure
	})

	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 3, calls)
	assert.Equal(t, failure, result.LastError)
	// No sleep after the final attempt
	assert.Len(t, sleeper.delays, 2)
}

func TestRun_NonRetryableStopsEarly(t *testing.T) {
	sleeper := &fakeSleeper{}
	policy := testPolicy(sleeper)

	fatal := errors.New("fatal failure")
	calls := 0
	result := policy.Run(context.Background(), func(err error) bool {
		return !errors.Is(err, fatal)
	}, func(ctx context.Context, attempt int) error {
		calls++
		return fatal
	})

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.delays)
}

func TestRun_ContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	policy := Policy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	result := policy.Run(ctx, nil, func(ctx context.Context, attempt int) error {
		return errors.New("transient failure")
	})

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.ErrorIs(t, result.LastError, context.Canceled)
}

func TestDelay_Progression(t *testing.T) {
	policy := DefaultPolicy()

	assert.Equal(t, 1*time.Second, policy.Delay(1))
	assert.Equal(t, 2*time.Second, policy.Delay(2))
	assert.Equal(t, 4*time.Second, policy.Delay(3))
}

func TestDelay_CappedAtMax(t *testing.T) {
	policy := Policy{
		InitialDelay: 1 * time.Second,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}

	assert.Equal(t, 4*time.Second, policy.Delay(3))
	assert.Equal(t, 5*time.Second, policy.Delay(4))
	assert.Equal(t, 5*time.Second, policy.Delay(10))
}
