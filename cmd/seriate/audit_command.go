package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"seriate/internal/validate"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Check every persisted artifact against the catalog invariants",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := ctx.newRunner()
			if err != nil {
				return err
			}
			artifacts := runner.Artifacts()

			in := validate.Input{}
			if in.RawEpisodes, err = artifacts.LoadRawEpisodes(); err != nil {
				return err
			}
			if in.Episodes, err = artifacts.LoadEpisodes(); err != nil {
				return err
			}
			if in.PublicEpisodes, err = artifacts.LoadPublicEpisodes(); err != nil {
				return err
			}
			if in.PublicSeries, err = artifacts.LoadPublicSeries(); err != nil {
				return err
			}
			if in.EpisodeCache, err = artifacts.LoadEpisodeCache(); err != nil {
				return err
			}
			if in.SeriesCache, err = artifacts.LoadSeriesCache(); err != nil {
				return err
			}
			if in.Registry, err = artifacts.LoadSlugRegistry(); err != nil {
				return err
			}

			validator, err := validate.New()
			if err != nil {
				return err
			}
			violations, err := validator.Run(in, validate.CollectAll)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(violations) == 0 {
				fmt.Fprintln(out, "Catalog is consistent.")
				return nil
			}

			rows := make([][]string, 0, len(violations))
			for _, violation := range violations {
				rows = append(rows, []string{violation.Rule, violation.ItemID, violation.Message})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Rule", "Item", "Message"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			return fmt.Errorf("%d violation(s) found", len(violations))
		},
	}
}
