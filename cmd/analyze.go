package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	app "github.com/okian/reviewlens/internal/app"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		product string
		rating  int
		review  string
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one review and append it to the log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := setup(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			svc, err := buildService(cfg, log)
			if err != nil {
				return err
			}
			defer svc.Stop()

			a, err := svc.Analyze(ctx, product, rating, review)
			if err != nil && !app.Unsaved(a, err) {
				return err
			}
			if perr := printJSON(cmd.OutOrStdout(), a); perr != nil {
				return perr
			}
			if err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: analysis was not saved: %v\n", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&product, "product", "", "product name")
	cmd.Flags().IntVar(&rating, "rating", 0, "customer rating, 1 to 5")
	cmd.Flags().StringVar(&review, "review", "", "review text")
	_ = cmd.MarkFlagRequired("rating")
	_ = cmd.MarkFlagRequired("review")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
