// Package queue holds pending analysis jobs between request handlers and the
// single analysis worker.
package queue

import (
	"context"
	"sync"

	"github.com/okian/reviewlens/internal/domain/record"
	"github.com/okian/reviewlens/pkg/metrics"
)

const defaultQueueCapacity = 64

// Result is what the worker sends back for a job.
type Result struct {
	Analysis record.Analysis
	Err      error
}

// Job is one queued analysis request.
type Job struct {
	ID    string
	Input record.Input

	// Ctx is the submitter's context. The worker skips the job when it is
	// already done and runs the analysis under it otherwise.
	Ctx context.Context //nolint:containedctx // request scoped job

	reply chan Result
}

// NewJob returns a job whose reply channel holds exactly one result.
func NewJob(ctx context.Context, id string, in record.Input) Job {
	return Job{ID: id, Input: in, Ctx: ctx, reply: make(chan Result, 1)}
}

// Reply delivers the job's result. It never blocks; later calls are dropped.
func (j Job) Reply(res Result) {
	select {
	case j.reply <- res:
	default:
	}
}

// Wait blocks until the result arrives or ctx is done.
func (j Job) Wait(ctx context.Context) (Result, error) {
	select {
	case res := <-j.reply:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job. Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, j Job) bool

	// Dequeue returns a channel of pending jobs, closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the number of pending jobs.
	Len() int

	// Cap returns the configured capacity.
	Cap() int

	// Close stops accepting jobs. Pending jobs are still delivered.
	Close() error

	// IsClosed reports whether Close has been called.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// Enqueue implements Queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool { //nolint:gocritic // hugeParam: Job is passed by value through the channel
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordError("queue", "closed")
		return false
	}

	select {
	case q.jobs <- j:
		metrics.UpdateQueueSize(len(q.jobs))
		return true
	case <-ctx.Done():
		metrics.RecordError("queue", "context_cancelled")
		return false
	default:
		metrics.RecordQueueRejected()
		return false
	}
}

// Dequeue implements Queue.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for {
			select {
			case j, ok := <-q.jobs:
				if !ok {
					return
				}
				metrics.UpdateQueueSize(len(q.jobs))
				select {
				case out <- j:
				case <-ctx.Done():
					j.Reply(Result{Err: ctx.Err()})
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len implements Queue.
func (q *InMemoryQueue) Len() int { return len(q.jobs) }

// Cap implements Queue.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close implements Queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed implements Queue.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
