package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/codewiki/internal/core/domain"
	"github.com/custodia-labs/codewiki/internal/core/ports/driven"
	"github.com/custodia-labs/codewiki/internal/logger"
)

// WorkerConfig tunes the worker pool.
type WorkerConfig struct {
	// Workers is the number of concurrent pipeline workers.
	Workers int

	// MaxAttempts is the delivery ceiling before dead-lettering.
	MaxAttempts int

	// BaseBackoff is the first redelivery delay; it doubles per attempt.
	BaseBackoff time.Duration

	// MaxBackoff caps the redelivery delay.
	MaxBackoff time.Duration

	// PollInterval is the idle wait when the queue is empty.
	PollInterval time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 10 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	return c
}

// WorkerPool pulls analysis-job messages from the queue and runs the
// pipeline. Each worker processes one job end-to-end before pulling the
// next; jobs for different repositories run concurrently.
type WorkerPool struct {
	queue    driven.JobQueue
	jobs     driven.JobRegistry
	pipeline *Pipeline
	cfg      WorkerConfig
}

// NewWorkerPool creates a worker pool over the queue and pipeline.
func NewWorkerPool(queue driven.JobQueue, jobs driven.JobRegistry, pipeline *Pipeline, cfg WorkerConfig) *WorkerPool {
	return &WorkerPool{
		queue:    queue,
		jobs:     jobs,
		pipeline: pipeline,
		cfg:      cfg.withDefaults(),
	}
}

// Run starts the workers and blocks until the context is cancelled.
func (w *WorkerPool) Run(ctx context.Context) error {
	logger.Info("Starting %d analysis workers", w.cfg.Workers)

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.loop(ctx, id)
		}(i)
	}

	wg.Wait()
	return ctx.Err()
}

// loop is one worker's receive-process cycle.
func (w *WorkerPool) loop(ctx context.Context, id int) {
	for {
		lease, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			if !errors.Is(err, domain.ErrQueueEmpty) {
				logger.Error("Worker %d: receive failed: %v", id, err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.PollInterval):
			}
			continue
		}

		w.handle(ctx, id, lease)
	}
}

// handle runs one leased message through the pipeline and settles the
// message according to the error classification.
func (w *WorkerPool) handle(ctx context.Context, id int, lease *driven.Lease) {
	logger.Debug("Worker %d: job %s attempt %d", id, lease.Message.JobID, lease.Attempt)

	err := w.pipeline.Run(ctx, lease.Message)
	switch {
	case err == nil:
		w.settle(ctx, lease, w.queue.Ack)

	case !domain.IsRetryable(err):
		// The pipeline already recorded the job failure; redelivering
		// would only repeat it.
		w.settle(ctx, lease, w.queue.Ack)

	case lease.Attempt >= w.cfg.MaxAttempts:
		cause := fmt.Sprintf("%v: %v", domain.ErrMaxRetriesExceeded, err)
		if ferr := w.jobs.Finish(ctx, lease.Message.JobID, domain.JobStatusFailed, cause); ferr != nil {
			logger.Error("Worker %d: failed to record dead-letter failure: %v", id, ferr)
		}
		logger.Error("Worker %d: job %s dead-lettered after %d attempts: %v",
			id, lease.Message.JobID, lease.Attempt, err)
		w.settle(ctx, lease, w.queue.DeadLetter)

	default:
		delay := w.backoff(lease.Attempt)
		logger.Warn("Worker %d: job %s attempt %d failed: %v (redelivery in %s)",
			id, lease.Message.JobID, lease.Attempt, err, delay)
		if nerr := w.queue.Nack(ctx, lease, delay); nerr != nil {
			logger.Error("Worker %d: nack failed: %v", id, nerr)
		}
	}
}

// settle applies a queue operation, tolerating settlement races with an
// expired lease.
func (w *WorkerPool) settle(ctx context.Context, lease *driven.Lease, op func(context.Context, *driven.Lease) error) {
	if err := op(ctx, lease); err != nil {
		logger.Warn("Queue settlement for %s failed: %v", lease.Message.JobID, err)
	}
}

// backoff returns the exponential redelivery delay for an attempt.
func (w *WorkerPool) backoff(attempt int) time.Duration {
	delay := w.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= w.cfg.MaxBackoff {
			return w.cfg.MaxBackoff
		}
	}
	return delay
}
