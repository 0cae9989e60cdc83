// Package service runs the review analysis pipeline and exposes it to the
// HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/reviewlens/internal/adapters/mq/queue"
	"github.com/okian/reviewlens/internal/adapters/mq/worker"
	"github.com/okian/reviewlens/internal/adapters/repository"
	"github.com/okian/reviewlens/internal/domain/classifier"
	"github.com/okian/reviewlens/internal/domain/consistency"
	"github.com/okian/reviewlens/internal/domain/record"
	"github.com/okian/reviewlens/internal/domain/sentiment"
	"github.com/okian/reviewlens/pkg/logger"
	"github.com/okian/reviewlens/pkg/metrics"
)

const (
	defaultQueueSize      = 64
	workerShutdownTimeout = 30 * time.Second
)

// Analysis is the outcome of one pipeline run.
type Analysis = record.Analysis

// Summary aggregates the analysis log.
type Summary struct {
	Total        int            `json:"total"`
	ByLabel      map[string]int `json:"by_label"`
	Mismatches   int            `json:"mismatches"`
	MismatchRate float64        `json:"mismatch_rate"`
}

// Service wires classifier, consistency check and analysis log together.
type Service struct {
	mu sync.RWMutex

	classifier classifier.Classifier
	store      repository.Store
	clock      func() time.Time

	queueSize int
	jobs      *queue.InMemoryQueue
	worker    *worker.Worker
	cancel    context.CancelFunc

	started   bool
	stopping  bool
	startedAt time.Time

	analyses        atomic.Int64
	mismatches      atomic.Int64
	persistFailures atomic.Int64
	rejected        atomic.Int64

	logger logger.Logger
}

// New constructs a Service. Classifier and store are required for Analyze.
func New(opts ...Option) *Service {
	s := &Service{
		clock:     time.Now,
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("pipeline")
	}
	return s
}

// Warm loads the classifier ahead of the first request when it supports it.
func (s *Service) Warm(ctx context.Context) error {
	w, ok := s.classifier.(interface{ Warm(context.Context) error })
	if !ok {
		return nil
	}
	return w.Warm(ctx)
}

// Analyze classifies one review, checks it against the rating and appends the
// outcome to the analysis log.
//
// Invalid input is rejected before the classifier runs. When classification
// succeeds but the append fails, the returned Analysis carries the result
// with Persisted unset and the error wraps the store failure.
func (s *Service) Analyze(ctx context.Context, product string, rating int, review string) (Analysis, error) {
	start := time.Now()
	a := Analysis{ID: uuid.NewString()}

	if strings.TrimSpace(review) == "" {
		metrics.RecordError("pipeline", "empty_review")
		return a, ErrEmptyReview
	}
	if err := consistency.ValidateRating(rating); err != nil {
		metrics.RecordError("pipeline", "invalid_rating")
		return a, err
	}
	if s.classifier == nil {
		return a, ErrNoClassifier
	}
	if s.store == nil {
		return a, ErrNoStore
	}

	inferStart := time.Now()
	dist, err := s.classifier.Classify(ctx, review)
	metrics.RecordInferenceLatency(float64(time.Since(inferStart).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordError("classifier", classifierErrorKind(err))
		s.logger.Error(ctx, "classification failed",
			logger.String("analysis_id", a.ID),
			logger.Error(err),
		)
		return a, fmt.Errorf("classify review: %w", err)
	}

	label := sentiment.Argmax(dist)
	mismatch, _ := consistency.IsMismatched(rating, label)

	a.Record = record.Record{
		Timestamp:   s.clock(),
		Product:     record.NormalizeNewlines(product),
		Rating:      rating,
		Review:      record.NormalizeNewlines(review),
		Sentiment:   label,
		Confidences: dist,
		Mismatch:    mismatch,
	}

	s.analyses.Add(1)
	metrics.RecordAnalysis(label.String())
	if mismatch {
		s.mismatches.Add(1)
		metrics.RecordMismatch()
	}

	if err := s.store.Append(ctx, a.Record); err != nil {
		s.persistFailures.Add(1)
		metrics.RecordError("store", storeErrorKind(err))
		s.logger.Error(ctx, "analysis not persisted",
			logger.String("analysis_id", a.ID),
			logger.Error(err),
		)
		return a, fmt.Errorf("persist analysis %s: %w", a.ID, err)
	}
	a.Persisted = true

	metrics.RecordAnalysisLatency(float64(time.Since(start).Microseconds()) / 1000)
	s.logger.Info(ctx, "review analyzed",
		logger.String("analysis_id", a.ID),
		logger.String("sentiment", label.String()),
		logger.Int("rating", rating),
		logger.Bool("mismatch", mismatch),
	)
	return a, nil
}

// Submit queues an analysis for the single worker and waits for its result.
// Returns queue.ErrFull when the queue is at capacity and queue.ErrClosed
// when the service is not running.
func (s *Service) Submit(ctx context.Context, in record.Input) (Analysis, error) {
	s.mu.RLock()
	jobs := s.jobs
	s.mu.RUnlock()

	if jobs == nil || jobs.IsClosed() {
		return Analysis{}, queue.ErrClosed
	}

	j := queue.NewJob(ctx, uuid.NewString(), in)
	if !jobs.Enqueue(ctx, j) {
		if jobs.IsClosed() {
			return Analysis{}, queue.ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return Analysis{}, err
		}
		s.rejected.Add(1)
		s.logger.Warn(ctx, "analysis queue full", logger.Int("capacity", jobs.Cap()))
		return Analysis{}, queue.ErrFull
	}

	res, err := j.Wait(ctx)
	if err != nil {
		return Analysis{}, err
	}
	return res.Analysis, res.Err
}

// Records returns the most recent limit records in append order.
func (s *Service) Records(ctx context.Context, limit int) ([]record.Record, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.List(ctx, limit)
}

// Summary counts the analysis log by label and mismatch.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	sum := Summary{ByLabel: make(map[string]int, sentiment.NumLabels)}
	for _, l := range sentiment.Labels {
		sum.ByLabel[l.String()] = 0
	}

	rs, err := s.Records(ctx, 0)
	if err != nil {
		return sum, err
	}
	for _, r := range rs {
		sum.Total++
		if r.Sentiment.Valid() {
			sum.ByLabel[r.Sentiment.String()]++
		}
		if r.Mismatch {
			sum.Mismatches++
		}
	}
	if sum.Total > 0 {
		sum.MismatchRate = float64(sum.Mismatches) / float64(sum.Total)
	}
	metrics.UpdateStoreRecords(sum.Total)
	return sum, nil
}

// Start launches the analysis worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting analysis service...")

	s.jobs = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.worker = worker.New(s.jobs, s, worker.WithLogger(s.logger.Named("worker")))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.worker.Run(runCtx)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "analysis service started", logger.Int("queueSize", s.queueSize))
	return nil
}

// Stop closes the queue, waits for the worker and closes the store. The
// service lock is not held while pending jobs drain.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started || s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	jobs, w, cancelRun := s.jobs, s.worker, s.cancel
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping analysis service...")

	_ = jobs.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, workerShutdownTimeout)
	defer cancel()
	// Closing the queue lets the worker drain pending jobs and exit.
	select {
	case <-w.Done():
	case <-shutdownCtx.Done():
	}
	if err := w.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "worker did not stop cleanly", logger.Error(err))
	}
	cancelRun()

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "closing analysis log", logger.Error(err))
		}
	}

	s.mu.Lock()
	s.started = false
	s.stopping = false
	s.mu.Unlock()
	s.logger.Info(ctx, "analysis service stopped")
}

// GetStats returns service statistics.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":          s.started,
		"stopping":         s.stopping,
		"queue_capacity":   s.queueSize,
		"queue_length":     0,
		"analyses":         s.analyses.Load(),
		"mismatches":       s.mismatches.Load(),
		"persist_failures": s.persistFailures.Load(),
		"rejected":         s.rejected.Load(),
	}
	if s.jobs != nil {
		stats["queue_length"] = s.jobs.Len()
	}
	if s.worker != nil {
		stats["worker_processed"] = s.worker.Processed()
		stats["worker_skipped"] = s.worker.Skipped()
	}
	if s.started {
		stats["uptime_seconds"] = time.Since(s.startedAt).Seconds()
	}
	return stats
}

// Unsaved reports whether a holds a finished analysis that err says could
// not be written to the analysis log.
func Unsaved(a Analysis, err error) bool {
	if err == nil || a.Record.Timestamp.IsZero() {
		return false
	}
	return errors.Is(err, repository.ErrStoreWrite) || errors.Is(err, repository.ErrStoreCorrupt)
}

func classifierErrorKind(err error) string {
	switch {
	case errors.Is(err, classifier.ErrTokenization):
		return "tokenization"
	case errors.Is(err, classifier.ErrModelLoad):
		return "model_load"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "inference"
	}
}

func storeErrorKind(err error) string {
	if errors.Is(err, repository.ErrStoreCorrupt) {
		return "corrupt"
	}
	return "write"
}
