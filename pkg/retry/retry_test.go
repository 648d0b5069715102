package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetrier(attempts int) *Retrier {
	return New(
		WithMaxAttempts(attempts),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(5*time.Millisecond),
		WithJitter(0),
	)
}

func TestDoSucceedsAfterRetryableFailures(t *testing.T) {
	calls := 0
	err := fastRetrier(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("flaky"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	cause := errors.New("bad token")
	calls := 0
	err := fastRetrier(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(cause)
	})

	assert.Equal(t, 1, calls)
	// The marker is stripped before returning.
	assert.Equal(t, cause, err)
}

func TestDoDoesNotRetryUnclassifiedErrors(t *testing.T) {
	calls := 0
	err := fastRetrier(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("unclassified")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	cause := errors.New("still down")
	calls := 0
	err := fastRetrier(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Retryable(cause)
	})

	assert.Equal(t, 3, calls)
	assert.Equal(t, cause, err)
}

func TestDoHonorsRetryIf(t *testing.T) {
	calls := 0
	err := New(
		WithMaxAttempts(4),
		WithInitialDelay(time.Millisecond),
		WithJitter(0),
		WithRetryIf(func(err error) bool { return !IsPermanent(err) }),
	).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("unclassified but retried")
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestDoStopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := New(
		WithMaxAttempts(10),
		WithInitialDelay(50*time.Millisecond),
		WithJitter(0),
	).Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return Retryable(errors.New("canceled mid-flight"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCalculateDelayBacksOffAndCaps(t *testing.T) {
	r := New(
		WithInitialDelay(10*time.Millisecond),
		WithMaxDelay(40*time.Millisecond),
		WithMultiplier(2.0),
		WithJitter(0),
	)

	assert.Equal(t, 10*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 20*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 40*time.Millisecond, r.calculateDelay(3))
	assert.Equal(t, 40*time.Millisecond, r.calculateDelay(4))
}

func TestClassificationPredicates(t *testing.T) {
	assert.True(t, IsRetryable(Retryable(errors.New("x"))))
	assert.True(t, IsPermanent(Permanent(errors.New("x"))))
	assert.False(t, IsRetryable(errors.New("x")))
	assert.False(t, IsPermanent(errors.New("x")))
	assert.NoError(t, Retryable(nil))
	assert.NoError(t, Permanent(nil))
}
