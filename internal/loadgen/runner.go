package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/reviewlens/pkg/logger"
)

const (
	directoryPermission = 0o750
	filePermission      = 0o640
	percentage          = 100
)

// ErrUnaccounted is returned when the log grew by less than the number of
// analyses the server reported as saved.
var ErrUnaccounted = errors.New("saved analyses missing from the log")

// Run generates cfg.NumReviews reviews, submits them through cfg.Workers
// concurrent clients and verifies the summary afterwards.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get().Named("loadgen")
	c := newClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("reviews", cfg.NumReviews),
		logger.Int("workers", cfg.Workers))

	if err := c.get(ctx, "/healthz", nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}
	if err := c.get(ctx, "/records/summary", &stats.Before); err != nil {
		return stats, fmt.Errorf("read summary: %w", err)
	}

	reviews, err := Generate(ctx, cfg.NumReviews)
	if err != nil {
		return stats, err
	}
	stats.Generated = len(reviews)

	if cfg.OutputFile != "" {
		if err := saveReviews(cfg.OutputFile, reviews); err != nil {
			log.Warn(ctx, "failed to save reviews to file", logger.Error(err))
		}
	}

	submit(ctx, c, cfg, reviews, stats)

	if err := c.get(ctx, "/records/summary", &stats.After); err != nil {
		return stats, fmt.Errorf("read summary: %w", err)
	}
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	logFinalStats(ctx, log, stats)
	return stats, verify(stats)
}

// submit fans reviews out to cfg.Workers goroutines. A 429 is retried with
// doubling backoff up to cfg.Retries times.
func submit(ctx context.Context, c *client, cfg *Config, reviews []Review, stats *Stats) {
	var saved, unsaved, rejected, failed, submitted, mismatches atomic.Int64

	workers := max(cfg.Workers, 1)
	ch := make(chan Review, workers*2)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range ch {
				submitted.Add(1)
				out, res := submitOne(ctx, c, cfg, r)
				switch out {
				case outcomeSaved:
					saved.Add(1)
				case outcomeUnsaved:
					unsaved.Add(1)
				case outcomeRejected:
					rejected.Add(1)
				default:
					failed.Add(1)
				}
				if res.Mismatch {
					mismatches.Add(1)
				}
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, r := range reviews {
			select {
			case <-ctx.Done():
				return
			case ch <- r:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = int(submitted.Load())
	stats.Saved = int(saved.Load())
	stats.Unsaved = int(unsaved.Load())
	stats.Rejected = int(rejected.Load())
	stats.Failed = int(failed.Load())
	stats.Mismatches = int(mismatches.Load())
}

func submitOne(ctx context.Context, c *client, cfg *Config, r Review) (outcome, analyzeResult) {
	backoff := cfg.Backoff
	for attempt := 0; ; attempt++ {
		out, res, err := c.analyze(ctx, r)
		if err != nil {
			logger.Get().Debug(ctx, "analyze failed", logger.Error(err))
		}
		if out != outcomeRejected || attempt >= cfg.Retries {
			return out, res
		}
		select {
		case <-ctx.Done():
			return outcomeFailed, analyzeResult{}
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// verify checks that every analysis reported as saved reached the log.
// Other writers may grow the log too, so only a shortfall is an error.
func verify(stats *Stats) error {
	grown := stats.After.Total - stats.Before.Total
	if grown < stats.Saved {
		return fmt.Errorf("%w: log grew by %d, server saved %d", ErrUnaccounted, grown, stats.Saved)
	}
	return nil
}

func saveReviews(path string, reviews []Review) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	b, err := json.MarshalIndent(reviews, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal reviews: %w", err)
	}
	return os.WriteFile(path, append(b, '\n'), filePermission)
}

func logFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var successRate, perSecond float64
	if stats.Submitted > 0 {
		successRate = float64(stats.Saved) / float64(stats.Submitted) * percentage
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("saved", stats.Saved),
		logger.Int("unsaved", stats.Unsaved),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Int("mismatches", stats.Mismatches),
		logger.Int("logGrowth", stats.After.Total-stats.Before.Total),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("reviewsPerSecond", perSecond))
}
