package main

import (
	"context"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/reviewlens/internal/loadgen"
	"github.com/okian/reviewlens/pkg/logger"
)

// Load run defaults.
const (
	defaultNumReviews    = 1000
	defaultWorkerFactor  = 2 // multiplier for runtime.NumCPU()
	defaultClientTimeout = 30 * time.Second
	defaultRunTimeout    = 10 * time.Minute
	defaultRetries       = 5
	defaultBackoff       = 50 * time.Millisecond
)

func newLoadgenCmd() *cobra.Command {
	cfg := &loadgen.Config{}
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Submit generated reviews to a running server and verify the log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.InitWithOptions(logger.Options{Writer: cmd.ErrOrStderr()}); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultRunTimeout)
			defer cancel()

			stats, err := loadgen.Run(ctx, cfg)
			if stats != nil && stats.Failed > 0 {
				logger.Get().Warn(ctx, "some submissions failed", logger.Int("failed", stats.Failed))
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "base URL of the service")
	f.IntVar(&cfg.NumReviews, "reviews", defaultNumReviews, "number of reviews to generate and submit")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkerFactor, "number of concurrent submitters")
	f.DurationVar(&cfg.Timeout, "timeout", defaultClientTimeout, "HTTP request timeout")
	f.IntVar(&cfg.Retries, "retries", defaultRetries, "retries per review after a 429")
	f.DurationVar(&cfg.Backoff, "backoff", defaultBackoff, "initial delay between 429 retries")
	f.StringVar(&cfg.OutputFile, "output", "", "write generated reviews to this JSON file")
	return cmd
}
