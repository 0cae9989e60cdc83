package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newRecordsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Print recent analysis records as JSON lines",
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

			rs, err := svc.Records(ctx, limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, r := range rs {
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "number of most recent records, 0 for all")
	return cmd
}
