// Package worker runs queued analyses one at a time.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okian/reviewlens/internal/adapters/mq/queue"
	"github.com/okian/reviewlens/internal/domain/record"
	"github.com/okian/reviewlens/pkg/logger"
	"github.com/okian/reviewlens/pkg/metrics"
)

// Analyzer runs the analysis pipeline for one input.
type Analyzer interface {
	Analyze(ctx context.Context, product string, rating int, review string) (record.Analysis, error)
}

// Queue defines how the worker receives jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker drains a queue with exactly one goroutine, so analyses never overlap.
type Worker struct {
	queue    Queue
	analyzer Analyzer
	name     string

	processed atomic.Int64
	skipped   atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// New creates a worker.
func New(q Queue, analyzer Analyzer, opts ...Option) *Worker {
	w := &Worker{
		queue:    q,
		analyzer: analyzer,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes jobs until ctx is done, Shutdown is called or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.process(j)
		}
	}
}

// Shutdown stops the worker after the job in progress, if any.
func (w *Worker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out", logger.String("worker", w.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run has returned.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Processed returns how many jobs reached the analyzer.
func (w *Worker) Processed() int64 { return w.processed.Load() }

// Skipped returns how many jobs were dropped because their submitter left.
func (w *Worker) Skipped() int64 { return w.skipped.Load() }

func (w *Worker) process(j queue.Job) { //nolint:gocritic // hugeParam: Job is passed by value through the channel
	ctx := j.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		w.skipped.Add(1)
		metrics.RecordError("worker", "abandoned")
		w.logger.Debug(ctx, "skipping abandoned job", logger.String("job_id", j.ID))
		j.Reply(queue.Result{Err: err})
		return
	}

	start := time.Now()
	a, err := w.analyzer.Analyze(ctx, j.Input.Product, j.Input.Rating, j.Input.Review)
	w.processed.Add(1)
	if a.ID == "" {
		a.ID = j.ID
	}
	w.logger.Debug(ctx, "job done",
		logger.String("job_id", j.ID),
		logger.Duration("took", time.Since(start)),
		logger.Bool("ok", err == nil),
	)
	j.Reply(queue.Result{Analysis: a, Err: err})
}
