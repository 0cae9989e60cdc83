// Package loadgen drives a running reviewlens server with generated
// reviews and checks that the analysis log accounted for every save.
package loadgen

import (
	"time"

	service "github.com/okian/reviewlens/internal/app"
	"github.com/okian/reviewlens/internal/domain/record"
)

// Config holds configuration for one load run.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumReviews int           // Number of reviews to generate and submit
	Workers    int           // Number of concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	Retries    int           // Attempts per review after a 429
	Backoff    time.Duration // Initial delay between 429 retries
	OutputFile string        // Where generated reviews are written, empty to skip
}

// Review is one generated submission.
type Review = record.Input

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Submitted  int
	Saved      int
	Unsaved    int
	Rejected   int
	Failed     int
	Mismatches int
	Before     Summary
	After      Summary
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}

// Summary is the body of GET /records/summary.
type Summary = service.Summary

type outcome int

const (
	outcomeSaved outcome = iota
	outcomeUnsaved
	outcomeRejected
	outcomeFailed
)
