package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/patternscope/patternscope/models"
)

const defaultQueueDepth = 64

// Workers is the bounded pool that actually executes queued jobs. API
// handlers enqueue a job id and return immediately; a fixed number of
// workers drain the channel and drive the pipeline.
type Workers struct {
	store    *Store
	pipeline *Pipeline
	logger   *slog.Logger
	size     int

	queue    chan string
	overflow chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
	runCtx  context.Context
	cancel  context.CancelFunc
}

// NewWorkers creates a pool of size workers. Non-positive sizes fall back
// to 3.
func NewWorkers(store *Store, pipeline *Pipeline, size int, logger *slog.Logger) *Workers {
	if size <= 0 {
		size = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workers{
		store:    store,
		pipeline: pipeline,
		logger:   logger,
		size:     size,
		queue:    make(chan string, defaultQueueDepth),
		overflow: make(chan struct{}, size),
	}
}

// Start launches the worker goroutines. Calling Start twice is a no-op.
func (w *Workers) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.runCtx = ctx
	w.started = true

	for i := 0; i < w.size; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
	w.logger.Info("analysis workers started", "count", w.size)
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (w *Workers) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.cancel()
	w.started = false
	w.mu.Unlock()
	w.wg.Wait()
}

// Enqueue hands a queued job to the pool without blocking. When the
// channel is full the job runs in its own goroutine instead, bounded by
// the overflow semaphore, so an accepted job always reaches a terminal
// state. Enqueue reports false only when the pool is not running; the
// job row stays queued and the caller surfaces the backpressure.
func (w *Workers) Enqueue(jobID string) bool {
	select {
	case w.queue <- jobID:
		return true
	default:
	}

	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		w.logger.Warn("job queue full and pool stopped", "job", jobID)
		return false
	}
	ctx := w.runCtx
	w.wg.Add(1)
	w.mu.Unlock()

	w.logger.Warn("job queue full, running in overflow slot", "job", jobID)
	go func() {
		defer w.wg.Done()
		select {
		case w.overflow <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-w.overflow }()
		w.execute(ctx, w.logger.With("worker", "overflow"), jobID)
	}()
	return true
}

func (w *Workers) run(ctx context.Context, id int) {
	defer w.wg.Done()
	log := w.logger.With("worker", id)
	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-w.queue:
			w.execute(ctx, log, jobID)
		}
	}
}

// execute drives one job through the pipeline, containing panics so a
// crashing job never kills the worker.
func (w *Workers) execute(ctx context.Context, log *slog.Logger, jobID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic executing job", "job", jobID, "panic", r)
			if err := w.store.FailJob(ctx, jobID, fmt.Sprintf("panic: %v", r)); err != nil {
				log.Error("could not record panic failure", "job", jobID, "error", err)
			}
		}
	}()

	job, err := w.store.GetJob(ctx, jobID)
	if err != nil {
		log.Error("dequeued unknown job", "job", jobID, "error", err)
		return
	}
	if job.Status != models.JobStatusQueued {
		log.Warn("skipping job in unexpected state", "job", jobID, "status", job.Status)
		return
	}
	if err := w.pipeline.Run(ctx, job); err != nil {
		log.Error("job failed", "job", jobID, "error", err)
	}
}
