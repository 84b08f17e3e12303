package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"seriate/internal/pipeline"
)

func newBuildCommand(ctx *commandContext) *cobra.Command {
	var (
		dryRun      bool
		plan        bool
		skipLLM     bool
		sinceFlag   string
		dataDirFlag string
		maxLLMCalls int
		forceIDs    []string
		forceScope  string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run the full catalog build",
		Long: `Fetch the feed, group episodes into series, enrich through the LLM cache,
and publish the catalog artifacts. --plan previews pending enrichments
without calling the API; --dry-run executes everything but writes nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataDirFlag != "" {
				if err := ctx.overrideDataDir(dataDirFlag); err != nil {
					return err
				}
			}
			runner, err := ctx.newRunner()
			if err != nil {
				return err
			}

			opts := pipeline.RunOptions{DryRun: dryRun, Plan: plan}
			if sinceFlag != "" {
				since, err := parseSince(sinceFlag)
				if err != nil {
					return err
				}
				opts.Since = &since
			}
			if skipLLM {
				zero := 0
				opts.MaxLLMCalls = &zero
			} else if cmd.Flags().Changed("max-llm-calls") {
				opts.MaxLLMCalls = &maxLLMCalls
			}
			if err := applyForceScope(&opts, forceScope); err != nil {
				return err
			}
			applyForceIDs(&opts, forceIDs)

			result, err := runner.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.Planned {
				printPlan(out, result)
				return nil
			}

			fmt.Fprintf(out, "Build %s: %d new episodes, %d series, %d LLM calls\n",
				result.RunID, result.NewEpisodes, result.TotalSeries, result.EpisodeCalls+result.SeriesCalls)
			if result.DryRun {
				fmt.Fprintln(out, "Dry run enabled; no artifacts were written.")
				for _, entry := range result.Ledger {
					fmt.Fprintf(out, "%s :: %s - %s\n", entry.Stage, entry.ItemID, entry.Message)
				}
			} else if len(result.Ledger) > 0 {
				fmt.Fprintf(out, "%d issue(s) appended to the error ledger.\n", len(result.Ledger))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run every stage but skip all writes")
	cmd.Flags().BoolVar(&plan, "plan", false, "Preview pending LLM enrichments without calling the API")
	cmd.Flags().BoolVar(&skipLLM, "skip-llm", false, "Build without any LLM calls; pending items stay uncached")
	cmd.Flags().StringVar(&sinceFlag, "since", "", "Only ingest feed items published on or after this date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&dataDirFlag, "data-dir", "", "Override the configured data directory for this run")
	cmd.Flags().IntVar(&maxLLMCalls, "max-llm-calls", -1, "Cap LLM calls per enrichment pass (-1 for unlimited)")
	cmd.Flags().StringSliceVar(&forceIDs, "force", nil, "Re-enrich these episode or series ids even when cached")
	cmd.Flags().StringVar(&forceScope, "force-scope", "", "Re-enrich a whole pass: all, episodes, or series")

	return cmd
}

// parseSince accepts a bare date or a full RFC 3339 timestamp.
func parseSince(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid --since value %q (want YYYY-MM-DD or RFC 3339)", value)
}

func applyForceScope(opts *pipeline.RunOptions, scope string) error {
	switch strings.ToLower(strings.TrimSpace(scope)) {
	case "":
	case "all":
		opts.ForceAllEpisodes = true
		opts.ForceAllSeries = true
	case "episodes":
		opts.ForceAllEpisodes = true
	case "series":
		opts.ForceAllSeries = true
	default:
		return fmt.Errorf("invalid --force-scope %q (want all, episodes, or series)", scope)
	}
	return nil
}

// applyForceIDs forces each id in both passes; unknown ids are dropped later
// against the actual catalog.
func applyForceIDs(opts *pipeline.RunOptions, ids []string) {
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		opts.ForceEpisodeIDs = append(opts.ForceEpisodeIDs, id)
		opts.ForceSeriesIDs = append(opts.ForceSeriesIDs, id)
	}
}

func printPlan(out io.Writer, result *pipeline.Result) {
	if len(result.PlannedEpisodes) == 0 && len(result.PlannedSeries) == 0 {
		fmt.Fprintln(out, "No LLM enrichments required; caches are up to date.")
		return
	}
	if len(result.PlannedEpisodes) > 0 {
		fmt.Fprintln(out, "Episodes requiring LLM enrichment:")
		fmt.Fprintln(out, renderTable(
			[]string{"Episode", "Fingerprint", "~Tokens"},
			planRows(result.PlannedEpisodes),
			[]columnAlignment{alignLeft, alignLeft, alignRight},
		))
	}
	if len(result.PlannedSeries) > 0 {
		fmt.Fprintln(out, "Series requiring LLM enrichment:")
		fmt.Fprintln(out, renderTable(
			[]string{"Series", "Fingerprint", "~Tokens"},
			planRows(result.PlannedSeries),
			[]columnAlignment{alignLeft, alignLeft, alignRight},
		))
	}
}

func planRows(items []pipeline.PlanItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{item.ID, shortFingerprint(item.Fingerprint), strconv.Itoa(item.ApproxTokens)})
	}
	return rows
}

// shortFingerprint keeps table rows readable; the full value lives in the
// cache artifacts.
func shortFingerprint(fingerprint string) string {
	if len(fingerprint) <= 16 {
		return fingerprint
	}
	return fingerprint[:16]
}
