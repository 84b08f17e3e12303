package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"seriate/internal/pipeline"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var sinceFlag string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Ingest the RSS feed into the raw layer without rebuilding",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := ctx.newRunner()
			if err != nil {
				return err
			}

			var opts pipeline.RunOptions
			if sinceFlag != "" {
				since, err := parseSince(sinceFlag)
				if err != nil {
					return err
				}
				opts.Since = &since
			}

			added, err := runner.Fetch(cmd.Context(), opts.Since)
			if err != nil {
				return err
			}
			if added == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No new episodes in the feed.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d new episode(s).\n", added)
			return nil
		},
	}

	cmd.Flags().StringVar(&sinceFlag, "since", "", "Only ingest feed items published on or after this date (YYYY-MM-DD or RFC 3339)")
	return cmd
}
