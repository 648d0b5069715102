// Package messaging delivers notification side effects through a bounded
// in-process queue with retry. Nothing here is fire-and-forget: a delivery
// that exhausts its retries is logged and handed to the dead-letter hook,
// so failures stay observable.
package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ctf-hub/ctf-community-hub/config"
	"github.com/ctf-hub/ctf-community-hub/pkg/retry"
)

// ErrQueueFull is returned when the delivery queue cannot accept a task.
var ErrQueueFull = errors.New("messaging: delivery queue is full")

// ErrStopped is returned when enqueueing after Stop.
var ErrStopped = errors.New("messaging: dispatcher is stopped")

// Task is one delivery attempt unit. Run is retried with backoff until it
// succeeds or attempts are exhausted.
type Task struct {
	ID   uuid.UUID
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher runs a fixed worker pool over a bounded task queue.
type Dispatcher struct {
	cfg    config.DispatcherConfig
	logger *slog.Logger

	// deadLetter receives tasks whose retries are exhausted. Optional.
	deadLetter func(task Task, err error)

	queue   chan Task
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewDispatcher creates a dispatcher; call Start before enqueueing.
func NewDispatcher(cfg config.DispatcherConfig, logger *slog.Logger, deadLetter func(Task, error)) *Dispatcher {
	return &Dispatcher{
		cfg:        cfg,
		logger:     logger.With("component", "dispatcher"),
		deadLetter: deadLetter,
		queue:      make(chan Task, cfg.QueueSize),
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled and
// the queue has drained, or immediately on Stop.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	d.logger.Info("dispatcher started", "workers", d.cfg.Workers, "queue_size", d.cfg.QueueSize)
}

// Enqueue submits a task without blocking. A full queue is an error the
// caller can observe rather than a silent drop.
func (d *Dispatcher) Enqueue(task Task) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return ErrStopped
	}
	d.mu.Unlock()

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	select {
	case d.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight deliveries to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for task := range d.queue {
		d.deliver(ctx, task)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, task Task) {
	start := time.Now()
	err := retry.Do(ctx, task.Run,
		retry.WithMaxAttempts(d.cfg.MaxAttempts),
		retry.WithInitialDelay(d.cfg.BaseDelay),
		retry.WithMaxDelay(d.cfg.MaxDelay),
		retry.WithRetryIf(func(err error) bool {
			return !retry.IsPermanent(err)
		}),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			d.logger.Warn("delivery retry",
				"task_id", task.ID, "task", task.Name,
				"attempt", attempt, "delay", delay, "error", err)
		}),
	)
	if err != nil {
		d.logger.Error("delivery exhausted",
			"task_id", task.ID, "task", task.Name,
			"attempts", d.cfg.MaxAttempts, "elapsed", time.Since(start), "error", err)
		if d.deadLetter != nil {
			d.deadLetter(task, err)
		}
		return
	}
	d.logger.Debug("delivery done",
		"task_id", task.ID, "task", task.Name, "elapsed", time.Since(start))
}
