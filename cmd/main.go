// Command reviewlens classifies product reviews, flags rating/sentiment
// mismatches and keeps an append-only log of every analysis.
//
// Usage:
//
//	reviewlens serve                                   # HTTP API
//	reviewlens analyze --rating 5 --review "..."       # one analysis
//	reviewlens records --limit 20                      # recent records
//	reviewlens loadgen --reviews 500                   # drive a running server
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/reviewlens/internal/adapters/repository"
	app "github.com/okian/reviewlens/internal/app"
	"github.com/okian/reviewlens/internal/config"
	"github.com/okian/reviewlens/internal/domain/classifier"
	"github.com/okian/reviewlens/pkg/logger"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// Exit codes.
const (
	exitSuccess = 0
	exitFailure = 1
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		return exitFailure
	}
	return exitSuccess
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reviewlens",
		Short:         "Review sentiment analysis with rating consistency checks",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCmd(), newAnalyzeCmd(), newRecordsCmd(), newLoadgenCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print reviewlens version",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "reviewlens version %s\n", version)
		},
	}
}

// setup loads configuration and initializes the global logger on w.
func setup(ctx context.Context, w io.Writer) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.InitWithOptions(logger.Options{Format: cfg.LogFormat, Writer: w}); err != nil {
		return nil, nil, fmt.Errorf("init logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return nil, nil, fmt.Errorf("init logging: %w", err)
	}
	return cfg, logger.Get(), nil
}

// buildService wires the classifier and analysis log named by cfg.
func buildService(cfg *config.Config, log logger.Logger) (*app.Service, error) {
	store, err := repository.Open(cfg.Store.Driver, cfg.Store.Path,
		repository.WithLockTimeout(cfg.Store.LockTimeout()),
		repository.WithLogger(log.Named("store")),
	)
	if err != nil {
		return nil, err
	}

	clf := classifier.NewLazyFromDir(cfg.Model.Path, log.Named("classifier"),
		classifier.WithMaxSequenceLength(cfg.Model.MaxSequenceLength),
	)

	return app.New(
		app.WithLogger(log.Named("pipeline")),
		app.WithClassifier(clf),
		app.WithStore(store),
		app.WithQueueSize(cfg.QueueSize),
	), nil
}
