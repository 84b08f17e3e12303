package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"seriate/internal/catalog"
)

func newSlugsCommand(ctx *commandContext) *cobra.Command {
	slugsCmd := &cobra.Command{
		Use:   "slugs",
		Short: "Slug registry utilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	slugsCmd.AddCommand(newSlugsListCommand(ctx))
	slugsCmd.AddCommand(newSlugsResolveCommand(ctx))
	slugsCmd.AddCommand(newSlugsRebuildCommand(ctx))

	return slugsCmd
}

func newSlugsListCommand(ctx *commandContext) *cobra.Command {
	var typeFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the slug registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := ctx.newRunner()
			if err != nil {
				return err
			}
			registry, err := runner.Artifacts().LoadSlugRegistry()
			if err != nil {
				return err
			}

			slugs := make([]string, 0, len(registry))
			for slug, ref := range registry {
				if typeFilter != "" && string(ref.Type) != typeFilter {
					continue
				}
				slugs = append(slugs, slug)
			}
			sort.Strings(slugs)

			out := cmd.OutOrStdout()
			if len(slugs) == 0 {
				fmt.Fprintln(out, "No slugs assigned yet; run a build first.")
				return nil
			}

			rows := make([][]string, 0, len(slugs))
			for _, slug := range slugs {
				ref := registry[slug]
				rows = append(rows, []string{slug, string(ref.Type), ref.ID})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Slug", "Type", "Owner"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&typeFilter, "type", "", fmt.Sprintf("Filter by owner type (%s or %s)", catalog.SlugTypeEpisode, catalog.SlugTypeSeries))
	return cmd
}

func newSlugsResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <slug>",
		Short: "Resolve a slug to its owning record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := ctx.newRunner()
			if err != nil {
				return err
			}
			registry, err := runner.Artifacts().LoadSlugRegistry()
			if err != nil {
				return err
			}

			ref, ok := registry[args[0]]
			if !ok {
				return fmt.Errorf("slug %q is not registered", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ref.Type, ref.ID)
			return nil
		},
	}
}

func newSlugsRebuildCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute every slug from the published records",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := ctx.newRunner()
			if err != nil {
				return err
			}
			count, err := runner.RebuildSlugs()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt %d slug(s).\n", count)
			return nil
		},
	}
}
