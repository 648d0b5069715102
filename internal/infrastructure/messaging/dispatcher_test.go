package messaging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctf-hub/ctf-community-hub/config"
)

func testConfig() config.DispatcherConfig {
	return config.DispatcherConfig{
		Workers:     2,
		QueueSize:   16,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherDelivers(t *testing.T) {
	d := NewDispatcher(testConfig(), discard(), nil)
	d.Start(context.Background())

	var delivered atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		err := d.Enqueue(Task{Name: "ok", Run: func(ctx context.Context) error {
			defer wg.Done()
			delivered.Add(1)
			return nil
		}})
		require.NoError(t, err)
	}
	wg.Wait()
	d.Stop()

	assert.Equal(t, int32(10), delivered.Load())
}

func TestDispatcherRetriesUntilSuccess(t *testing.T) {
	d := NewDispatcher(testConfig(), discard(), nil)
	d.Start(context.Background())

	var attempts atomic.Int32
	done := make(chan struct{})
	err := d.Enqueue(Task{Name: "flaky", Run: func(ctx context.Context) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never succeeded")
	}
	d.Stop()
	assert.Equal(t, int32(3), attempts.Load())
}

func TestDispatcherReportsExhaustion(t *testing.T) {
	var deadMu sync.Mutex
	var dead []Task
	d := NewDispatcher(testConfig(), discard(), func(task Task, err error) {
		deadMu.Lock()
		dead = append(dead, task)
		deadMu.Unlock()
	})
	d.Start(context.Background())

	var attempts atomic.Int32
	err := d.Enqueue(Task{Name: "doomed", Run: func(ctx context.Context) error {
		attempts.Add(1)
		return errors.New("always fails")
	}})
	require.NoError(t, err)
	d.Stop()

	assert.Equal(t, int32(3), attempts.Load(), "bounded attempts")
	deadMu.Lock()
	defer deadMu.Unlock()
	require.Len(t, dead, 1)
	assert.Equal(t, "doomed", dead[0].Name)
	assert.NotEqual(t, "", dead[0].ID.String())
}

func TestDispatcherQueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 1
	cfg.QueueSize = 1
	d := NewDispatcher(cfg, discard(), nil)
	// Not started: nothing drains the queue.

	require.NoError(t, d.Enqueue(Task{Name: "a", Run: func(ctx context.Context) error { return nil }}))
	err := d.Enqueue(Task{Name: "b", Run: func(ctx context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestDispatcherRejectsAfterStop(t *testing.T) {
	d := NewDispatcher(testConfig(), discard(), nil)
	d.Start(context.Background())
	d.Stop()

	err := d.Enqueue(Task{Name: "late", Run: func(ctx context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrStopped)
}
