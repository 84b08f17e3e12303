package pipeline

import (
	"context"
	"math"
	"time"

	"seriate/internal/catalog"
	"seriate/internal/compose"
	"seriate/internal/csvjoin"
	"seriate/internal/enrich"
	"seriate/internal/llm"
	"seriate/internal/logging"
	"seriate/internal/services"
	"seriate/internal/slug"
	"seriate/internal/store"
	"seriate/internal/validate"
)

// RunOptions controls a single build.
type RunOptions struct {
	// Since drops fetched feed items published before this instant.
	Since *time.Time
	// DryRun executes every stage but skips all filesystem writes.
	DryRun bool
	// Plan stops after the enrichment planning pass and reports what a real
	// run would send to the LLM. Implies no writes.
	Plan bool
	// MaxLLMCalls caps API calls for each enrichment pass independently.
	// Nil falls back to the configured cap; negative means unlimited.
	MaxLLMCalls *int
	// Force flags re-enrich records that already have current cache entries.
	ForceAllEpisodes bool
	ForceAllSeries   bool
	ForceEpisodeIDs  []string
	ForceSeriesIDs   []string
}

// PlanItem is one pending enrichment with a rough prompt-size estimate.
type PlanItem struct {
	ID           string
	Fingerprint  string
	ApproxTokens int
}

// Result summarizes a completed (or planned) build.
type Result struct {
	RunID           string
	NewEpisodes     int
	TotalEpisodes   int
	TotalSeries     int
	PublicEpisodes  int
	PublicSeries    int
	EpisodeCalls    int
	SeriesCalls     int
	PlannedEpisodes []PlanItem
	PlannedSeries   []PlanItem
	Ledger          []catalog.LedgerEntry
	Planned         bool
	DryRun          bool
}

// Run executes the build pipeline end to end. Plan mode returns before
// composition; dry-run mode runs everything but persists nothing.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	locked, err := r.lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "pipeline", "acquire lock", "locking data directory", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrTransient, "pipeline", "acquire lock", "another run holds the data directory lock", nil)
	}
	defer func() { _ = r.lock.Unlock() }()

	runID := r.newRunID()
	ctx = services.WithRunID(ctx, runID)
	logger := r.logger.With(logging.FieldRunID, runID)
	startedAt := r.now().UTC()

	existingRaw, err := r.artifacts.LoadRawEpisodes()
	if err != nil {
		return nil, err
	}
	existingEpisodeCache, err := r.artifacts.LoadEpisodeCache()
	if err != nil {
		return nil, err
	}
	existingSeriesCache, err := r.artifacts.LoadSeriesCache()
	if err != nil {
		return nil, err
	}

	fetched, err := r.fetcher.Fetch(ctx, existingRaw, opts.Since)
	if err != nil {
		return nil, err
	}
	updatedRaw := append(append([]catalog.RawEpisode(nil), existingRaw...), fetched...)
	logger.Info("feed ingested",
		logging.Int("new_episodes", len(fetched)),
		logging.Int(logging.FieldCount, len(updatedRaw)))

	episodes := enrich.BuildEpisodes(updatedRaw)
	if err := r.joinSubjectTags(episodes); err != nil {
		return nil, err
	}

	overrides, err := r.overrides.Entries()
	if err != nil {
		return nil, err
	}
	series := r.grouper.Run(episodes, overrides)
	logger.Info("series grouped",
		logging.Int("episodes", len(episodes)),
		logging.Int("series", len(series)))

	forceEpisodes := resolveForceSet(opts.ForceAllEpisodes, opts.ForceEpisodeIDs, episodeIDs(episodes))
	forceSeries := resolveForceSet(opts.ForceAllSeries, opts.ForceSeriesIDs, seriesIDs(series))

	episodeResult := r.enricher.EnrichEpisodes(ctx, episodes, existingEpisodeCache, llm.Options{
		MaxCalls: r.resolveBudget(opts),
		ForceIDs: forceEpisodes,
		PlanOnly: opts.Plan,
	})
	seriesResult := r.enricher.EnrichSeries(ctx, series, existingSeriesCache, llm.Options{
		MaxCalls: r.resolveBudget(opts),
		ForceIDs: forceSeries,
		PlanOnly: opts.Plan,
	})

	applyEpisodeYearSpans(episodes, episodeResult.Cache)
	cleanedSeriesCache := pruneSeriesCache(seriesResult.Cache, series)
	applySeriesYearSpans(series, episodes)

	result := &Result{
		RunID:         runID,
		NewEpisodes:   len(fetched),
		TotalEpisodes: len(episodes),
		TotalSeries:   len(series),
		EpisodeCalls:  episodeResult.CallsMade,
		SeriesCalls:   seriesResult.CallsMade,
		Ledger:        append(append([]catalog.LedgerEntry(nil), episodeResult.Ledger...), seriesResult.Ledger...),
		Planned:       opts.Plan,
		DryRun:        opts.DryRun,
	}

	if opts.Plan {
		result.PlannedEpisodes = episodePlanItems(episodeResult.Planned, episodes)
		result.PlannedSeries = seriesPlanItems(seriesResult.Planned, series)
		return result, nil
	}

	composed, err := compose.Run(compose.Input{
		RawEpisodes:  updatedRaw,
		Episodes:     episodes,
		Series:       series,
		EpisodeCache: episodeResult.Cache,
		SeriesCache:  cleanedSeriesCache,
	})
	if err != nil {
		return nil, err
	}

	registry := r.assignSlugs(composed.Series, composed.Episodes)
	result.PublicEpisodes = len(composed.Episodes)
	result.PublicSeries = len(composed.Series)

	if _, err := r.validator.Run(validate.Input{
		RawEpisodes:    updatedRaw,
		Episodes:       episodes,
		PublicEpisodes: composed.Episodes,
		PublicSeries:   composed.Series,
		EpisodeCache:   episodeResult.Cache,
		SeriesCache:    cleanedSeriesCache,
		Registry:       registry,
	}, validate.FailFast); err != nil {
		return nil, err
	}

	if opts.DryRun {
		logger.Info("dry run enabled, skipping filesystem writes")
		return result, nil
	}

	if err := r.persist(updatedRaw, episodes, series, episodeResult.Cache, cleanedSeriesCache, composed, registry); err != nil {
		return nil, err
	}
	if err := r.recordRun(ctx, store.Run{
		ID:          runID,
		StartedAt:   startedAt,
		FinishedAt:  r.now().UTC(),
		Status:      "ok",
		NewEpisodes: len(fetched),
		LLMCalls:    episodeResult.CallsMade + seriesResult.CallsMade,
	}, updatedRaw); err != nil {
		return nil, err
	}
	if err := r.ledger.Append(runID, result.Ledger); err != nil {
		return nil, err
	}

	logger.Info("build complete",
		logging.Int("public_episodes", result.PublicEpisodes),
		logging.Int("public_series", result.PublicSeries),
		logging.Int("llm_calls", result.EpisodeCalls+result.SeriesCalls))
	return result, nil
}

// joinSubjectTags merges the curated CSV sheet onto episodes by feed number.
// A configured but unreadable sheet fails the run.
func (r *Runner) joinSubjectTags(episodes map[string]*catalog.ProgrammaticEpisode) error {
	if r.cfg.CSV.Path == "" {
		return nil
	}
	rows, err := csvjoin.Load(r.cfg.CSV.Path)
	if err != nil {
		return err
	}
	tags := csvjoin.SubjectTags(rows)
	for _, episode := range episodes {
		if episode.ItunesEpisode == nil {
			continue
		}
		if matched, ok := tags[*episode.ItunesEpisode]; ok {
			episode.SubjectTags = matched
		}
	}
	return nil
}

// assignSlugs hands out slugs over the composed records in place and returns
// the registry mapping each slug to its owner.
func (r *Runner) assignSlugs(series []catalog.PublicSeries, episodes []catalog.PublicEpisode) map[string]catalog.SlugRef {
	seriesInputs := make([]slug.SeriesInput, 0, len(series))
	for _, s := range series {
		seriesInputs = append(seriesInputs, slug.SeriesInput{SeriesID: s.SeriesID, SeriesTitle: s.SeriesTitle})
	}
	episodeInputs := make([]slug.EpisodeInput, 0, len(episodes))
	for _, e := range episodes {
		episodeInputs = append(episodeInputs, slug.EpisodeInput{
			EpisodeID:  e.EpisodeID,
			CleanTitle: e.CleanTitle,
			Part:       e.Part,
			SeriesID:   e.SeriesID,
		})
	}

	assignment := r.namer.Assign(seriesInputs, episodeInputs)
	for i := range series {
		series[i].Slug = assignment.SeriesSlugs[series[i].SeriesID]
	}
	for i := range episodes {
		episodes[i].Slug = assignment.EpisodeSlugs[episodes[i].EpisodeID]
	}
	return assignment.Registry
}

func (r *Runner) persist(
	raw []catalog.RawEpisode,
	episodes map[string]*catalog.ProgrammaticEpisode,
	series map[string]catalog.ProgrammaticSeries,
	episodeCache map[string]catalog.EpisodeCacheEntry,
	seriesCache map[string]catalog.SeriesCacheEntry,
	composed compose.Output,
	registry map[string]catalog.SlugRef,
) error {
	if err := r.artifacts.SaveRawEpisodes(raw); err != nil {
		return err
	}
	if err := r.artifacts.SaveEpisodes(episodes); err != nil {
		return err
	}
	if err := r.artifacts.SaveSeries(series); err != nil {
		return err
	}
	if err := r.artifacts.SaveEpisodeCache(episodeCache); err != nil {
		return err
	}
	if err := r.artifacts.SaveSeriesCache(seriesCache); err != nil {
		return err
	}
	if err := r.artifacts.SavePublicEpisodes(composed.Episodes); err != nil {
		return err
	}
	if err := r.artifacts.SavePublicSeries(composed.Series); err != nil {
		return err
	}
	return r.artifacts.SaveSlugRegistry(registry)
}

// recordRun mirrors the raw layer and the run row into SQLite. The JSON
// artifacts stay authoritative; a mirror failure still fails the run so the
// two never drift silently.
func (r *Runner) recordRun(ctx context.Context, run store.Run, raw []catalog.RawEpisode) error {
	db, err := r.openDB()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.UpsertRawEpisodes(ctx, raw); err != nil {
		return err
	}
	return db.RecordRun(ctx, run)
}

// resolveBudget returns the per-pass call cap: the run option wins, then the
// configured cap. Negative means unlimited.
func (r *Runner) resolveBudget(opts RunOptions) *int {
	if opts.MaxLLMCalls != nil {
		v := *opts.MaxLLMCalls
		return &v
	}
	v := r.cfg.LLM.MaxCalls
	return &v
}

// resolveForceSet expands a force-all flag or explicit id list against the
// ids that actually exist; unknown ids are dropped.
func resolveForceSet(all bool, ids []string, existing map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	if all {
		for id := range existing {
			out[id] = struct{}{}
		}
		return out
	}
	for _, id := range ids {
		if _, ok := existing[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func episodeIDs(episodes map[string]*catalog.ProgrammaticEpisode) map[string]struct{} {
	out := make(map[string]struct{}, len(episodes))
	for id := range episodes {
		out[id] = struct{}{}
	}
	return out
}

func seriesIDs(series map[string]catalog.ProgrammaticSeries) map[string]struct{} {
	out := make(map[string]struct{}, len(series))
	for id := range series {
		out[id] = struct{}{}
	}
	return out
}

// episodePlanItems estimates prompt size from the cleaned text at roughly
// 3.5 characters per token.
func episodePlanItems(planned []llm.PlannedItem, episodes map[string]*catalog.ProgrammaticEpisode) []PlanItem {
	out := make([]PlanItem, 0, len(planned))
	for _, item := range planned {
		tokens := 0
		if episode, ok := episodes[item.ID]; ok {
			tokens = int(math.Ceil(float64(len(episode.CleanDescription)+len(episode.CleanTitle)) / 3.5))
		}
		out = append(out, PlanItem{ID: item.ID, Fingerprint: item.Fingerprint, ApproxTokens: tokens})
	}
	return out
}

// seriesPlanItems estimates prompt size at roughly 400 tokens per member
// summary.
func seriesPlanItems(planned []llm.PlannedItem, series map[string]catalog.ProgrammaticSeries) []PlanItem {
	out := make([]PlanItem, 0, len(planned))
	for _, item := range planned {
		tokens := 0
		if s, ok := series[item.ID]; ok {
			tokens = len(s.Derived.EpisodeSummaries) * 400
		}
		out = append(out, PlanItem{ID: item.ID, Fingerprint: item.Fingerprint, ApproxTokens: tokens})
	}
	return out
}
