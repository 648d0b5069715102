package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream down")

func failN(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			return errUpstream
		})
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := New("test", WithFailureThreshold(3), WithTimeout(time.Hour))

	failN(cb, 2)
	assert.Equal(t, StateClosed, cb.State())

	failN(cb, 1)
	assert.Equal(t, StateOpen, cb.State())

	// Open breaker rejects without invoking the function.
	called := false
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithTimeout(time.Millisecond),
	)

	failN(cb, 1)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(5 * time.Millisecond)

	// First probe after the timeout is admitted and moves the breaker to
	// half-open; the second success closes it.
	for i := 0; i < 2; i++ {
		err := cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
		require.NoError(t, err)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := New("test", WithFailureThreshold(1), WithTimeout(time.Millisecond))

	failN(cb, 1)
	time.Sleep(5 * time.Millisecond)

	failN(cb, 1)
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreakerLimitsHalfOpenProbes(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(5),
		WithTimeout(time.Millisecond),
		WithMaxHalfOpenRequests(1),
	)

	failN(cb, 1)
	time.Sleep(5 * time.Millisecond)

	block := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(context.Background(), func(ctx context.Context) error {
			<-block
			return nil
		})
	}()

	// Second request while the probe is in flight exceeds the quota.
	assert.Eventually(t, func() bool {
		err := cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
		return errors.Is(err, ErrTooManyRequests)
	}, time.Second, time.Millisecond)

	close(block)
	require.NoError(t, <-done)
}

func TestBreakerIsFailureFilter(t *testing.T) {
	benign := errors.New("not found")
	cb := New("test",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, benign) }),
	)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return benign })
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return errUpstream })
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreakerStateChangeCallback(t *testing.T) {
	var transitions []string
	cb := New("discord-api",
		WithFailureThreshold(1),
		WithTimeout(time.Hour),
		WithOnStateChange(func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		}),
	)

	failN(cb, 1)
	assert.Equal(t, []string{"discord-api:closed->open"}, transitions)
}

func TestBreakerReset(t *testing.T) {
	cb := New("test", WithFailureThreshold(1), WithTimeout(time.Hour))
	failN(cb, 1)
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, Counts{}, cb.Counts())
}
