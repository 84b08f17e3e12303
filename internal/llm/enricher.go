package llm

import (
	"context"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"seriate/internal/catalog"
	"seriate/internal/logging"
)

const (
	maxPeoplePerEpisode = 12
	maxPlacesPerEpisode = 12
	maxThemesPerEpisode = 8
)

const (
	stageEpisodes = "llm:episodes"
	stageSeries   = "llm:series"
)

// The model occasionally wraps the object in prose. Undecodable replies are
// re-asked with a reminder appended before the item is written off as an
// error entry.
const (
	maxPromptAttempts  = 3
	jsonReminderSuffix = "\n\nREMINDER: Reply with strict JSON only."
)

// Completer is the slice of Client the enricher needs. Tests substitute a
// canned implementation.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (Completion, error)
	PrimaryModel() string
}

// Options controls one enrichment pass.
type Options struct {
	// MaxCalls caps API calls for the pass. Nil or negative means unlimited.
	MaxCalls *int
	// ForceIDs re-enriches these ids even when a current cache entry exists.
	ForceIDs map[string]struct{}
	// PlanOnly collects the items that would be enriched without calling out.
	PlanOnly bool
}

// PlannedItem identifies one pending enrichment in plan mode.
type PlannedItem struct {
	ID          string `json:"id"`
	Fingerprint string `json:"fingerprint"`
}

// EpisodeResult is the outcome of an episode enrichment pass.
type EpisodeResult struct {
	Cache     map[string]catalog.EpisodeCacheEntry
	Ledger    []catalog.LedgerEntry
	CallsMade int
	Planned   []PlannedItem
}

// SeriesResult is the outcome of a series enrichment pass.
type SeriesResult struct {
	Cache     map[string]catalog.SeriesCacheEntry
	Ledger    []catalog.LedgerEntry
	CallsMade int
	Planned   []PlannedItem
}

// Enricher runs the cached enrichment passes. Failures never abort a pass;
// they are recorded in the ledger and as status "error" cache entries so the
// next run retries only what actually failed.
type Enricher struct {
	completer Completer
	logger    *slog.Logger
	now       func() time.Time
}

// EnricherOption customizes an Enricher.
type EnricherOption func(*Enricher)

// WithLogger attaches a logger for per-item progress.
func WithLogger(logger *slog.Logger) EnricherOption {
	return func(e *Enricher) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the timestamp source (useful for tests).
func WithClock(now func() time.Time) EnricherOption {
	return func(e *Enricher) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEnricher constructs an enricher around the supplied completer.
func NewEnricher(completer Completer, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		completer: completer,
		logger:    logging.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EnrichEpisodes fills the episode cache for every episode whose current
// fingerprint has no entry. Episodes are visited in (publishedAt, episodeId)
// order so budget exhaustion always hits the newest items last.
func (e *Enricher) EnrichEpisodes(ctx context.Context, episodes map[string]*catalog.ProgrammaticEpisode, existing map[string]catalog.EpisodeCacheEntry, opts Options) EpisodeResult {
	result := EpisodeResult{Cache: make(map[string]catalog.EpisodeCacheEntry, len(existing))}
	for key, entry := range existing {
		result.Cache[key] = normalizeEpisodeEntry(entry)
	}

	ordered := make([]*catalog.ProgrammaticEpisode, 0, len(episodes))
	for _, episode := range episodes {
		ordered = append(ordered, episode)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].PublishedAt.Equal(ordered[j].PublishedAt) {
			return ordered[i].PublishedAt.Before(ordered[j].PublishedAt)
		}
		return ordered[i].EpisodeID < ordered[j].EpisodeID
	})

	budget := newCallBudget(opts.MaxCalls)
	for _, episode := range ordered {
		cacheKey := catalog.CacheKey(episode.EpisodeID, episode.Fingerprint)
		_, force := opts.ForceIDs[episode.EpisodeID]

		if _, ok := result.Cache[cacheKey]; ok && !force {
			continue
		}
		if force {
			delete(result.Cache, cacheKey)
		}
		if opts.PlanOnly {
			result.Planned = append(result.Planned, PlannedItem{ID: episode.EpisodeID, Fingerprint: episode.Fingerprint})
			continue
		}
		if budget.exhausted() {
			result.Ledger = append(result.Ledger, e.entry(stageEpisodes, episode.EpisodeID, catalog.LedgerInfo,
				"Skipped LLM enrichment due to max call limit", map[string]any{"cacheKey": cacheKey}))
			continue
		}

		payload, completion, calls, requestErr, parseErr := completeJSONWithReminder[episodePayload](e, ctx, episodeSystemPrompt, buildEpisodeUserPrompt(episode))
		result.CallsMade += calls
		for i := 0; i < calls; i++ {
			budget.spend()
		}
		if requestErr != nil {
			result.Ledger = append(result.Ledger, e.entry(stageEpisodes, episode.EpisodeID, catalog.LedgerError,
				"OpenAI request failed", map[string]any{"cacheKey": cacheKey, "error": requestErr.Error()}))
			result.Cache[cacheKey] = e.episodeErrorEntry(episode, e.completer.PrimaryModel(), requestErr.Error())
			continue
		}
		if parseErr != nil {
			result.Ledger = append(result.Ledger, e.entry(stageEpisodes, episode.EpisodeID, catalog.LedgerError,
				parseErr.Error(), map[string]any{"cacheKey": cacheKey, "raw": completion.Content}))
			result.Cache[cacheKey] = e.episodeErrorEntry(episode, completion.Model, parseErr.Error())
			continue
		}
		e.logger.Debug("episode enriched", logging.String("episode_id", episode.EpisodeID), logging.String("model", completion.Model))

		result.Cache[cacheKey] = catalog.EpisodeCacheEntry{
			EpisodeID:      episode.EpisodeID,
			Fingerprint:    episode.Fingerprint,
			Model:          completion.Model,
			PromptVersion:  EpisodePromptVersion,
			CreatedAt:      e.now().UTC(),
			Status:         catalog.CacheStatusOK,
			KeyPeople:      sanitizeArray(payload.KeyPeople, maxPeoplePerEpisode),
			KeyPlaces:      sanitizeArray(payload.KeyPlaces, maxPlacesPerEpisode),
			KeyThemes:      sanitizeThemes(payload.KeyThemes),
			YearFrom:       ensureYear(payload.YearFrom),
			YearTo:         ensureYear(payload.YearTo),
			YearConfidence: normalizeYearConfidence(payload.YearConfidence),
		}
	}
	return result
}

// EnrichSeries fills the series cache in seriesId order. Series without
// derived episode summaries are skipped with a warning since the prompt
// would carry no usable signal.
func (e *Enricher) EnrichSeries(ctx context.Context, series map[string]catalog.ProgrammaticSeries, existing map[string]catalog.SeriesCacheEntry, opts Options) SeriesResult {
	result := SeriesResult{Cache: make(map[string]catalog.SeriesCacheEntry, len(existing))}
	for key, entry := range existing {
		result.Cache[key] = entry
	}

	ordered := make([]catalog.ProgrammaticSeries, 0, len(series))
	for _, s := range series {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].SeriesID < ordered[j].SeriesID })

	budget := newCallBudget(opts.MaxCalls)
	for _, s := range ordered {
		cacheKey := catalog.CacheKey(s.SeriesID, s.Fingerprint)
		_, force := opts.ForceIDs[s.SeriesID]

		if _, ok := result.Cache[cacheKey]; ok && !force {
			continue
		}
		if force {
			delete(result.Cache, cacheKey)
		}
		if len(s.Derived.EpisodeSummaries) == 0 {
			result.Ledger = append(result.Ledger, e.entry(stageSeries, s.SeriesID, catalog.LedgerWarn,
				"Series lacks episode summaries; skipping enrichment", map[string]any{"cacheKey": cacheKey}))
			continue
		}
		if opts.PlanOnly {
			result.Planned = append(result.Planned, PlannedItem{ID: s.SeriesID, Fingerprint: s.Fingerprint})
			continue
		}
		if budget.exhausted() {
			result.Ledger = append(result.Ledger, e.entry(stageSeries, s.SeriesID, catalog.LedgerInfo,
				"Skipped LLM enrichment due to max call limit", map[string]any{"cacheKey": cacheKey}))
			continue
		}

		payload, completion, calls, requestErr, parseErr := completeJSONWithReminder[seriesPayload](e, ctx, seriesSystemPrompt, buildSeriesUserPrompt(s))
		result.CallsMade += calls
		for i := 0; i < calls; i++ {
			budget.spend()
		}
		if requestErr != nil {
			result.Ledger = append(result.Ledger, e.entry(stageSeries, s.SeriesID, catalog.LedgerError,
				"OpenAI request failed", map[string]any{"cacheKey": cacheKey, "error": requestErr.Error()}))
			result.Cache[cacheKey] = e.seriesErrorEntry(s, e.completer.PrimaryModel(), requestErr.Error(), "")
			continue
		}
		if parseErr != nil {
			result.Ledger = append(result.Ledger, e.entry(stageSeries, s.SeriesID, catalog.LedgerError,
				parseErr.Error(), map[string]any{"cacheKey": cacheKey, "raw": completion.Content}))
			result.Cache[cacheKey] = e.seriesErrorEntry(s, completion.Model, parseErr.Error(), s.TitleFallback)
			continue
		}
		e.logger.Debug("series enriched", logging.String("series_id", s.SeriesID), logging.String("model", completion.Model))

		title := strings.TrimSpace(payload.SeriesTitle)
		if title == "" {
			title = s.TitleFallback
		}
		var tonal []string
		if payload.TonalDescriptors != nil {
			tonal = sanitizeArray(payload.TonalDescriptors, 0)
		}
		result.Cache[cacheKey] = catalog.SeriesCacheEntry{
			SeriesID:         s.SeriesID,
			Fingerprint:      s.Fingerprint,
			Model:            completion.Model,
			PromptVersion:    SeriesPromptVersion,
			CreatedAt:        e.now().UTC(),
			Status:           catalog.CacheStatusOK,
			SeriesTitle:      title,
			NarrativeSummary: strings.TrimSpace(payload.NarrativeSummary),
			TonalDescriptors: tonal,
			YearFrom:         cloneYear(s.YearFrom),
			YearTo:           cloneYear(s.YearTo),
			YearConfidence:   seriesYearConfidence(s),
		}
	}
	return result
}

// episodePayload tolerates mixed-type arrays and non-numeric years; the
// sanitizers below filter them instead of failing the whole parse.
type episodePayload struct {
	KeyPeople      []any `json:"keyPeople"`
	KeyPlaces      []any `json:"keyPlaces"`
	KeyThemes      []any `json:"keyThemes"`
	YearFrom       any   `json:"yearFrom"`
	YearTo         any   `json:"yearTo"`
	YearConfidence any   `json:"yearConfidence"`
}

type seriesPayload struct {
	SeriesTitle      string `json:"seriesTitle"`
	NarrativeSummary string `json:"narrativeSummary"`
	TonalDescriptors []any  `json:"tonalDescriptors"`
}

// completeJSONWithReminder issues the completion and decodes the reply,
// re-asking with jsonReminderSuffix appended to the user prompt when the
// payload does not decode. calls counts completions that reached the model,
// so the caller can charge the budget per request. A transport failure
// returns immediately as requestErr; parseErr means every attempt produced
// an undecodable reply, with completion holding the last one.
func completeJSONWithReminder[T any](e *Enricher, ctx context.Context, systemPrompt, userPrompt string) (payload T, completion Completion, calls int, requestErr, parseErr error) {
	for attempt := 0; attempt < maxPromptAttempts; attempt++ {
		prompt := userPrompt
		if attempt > 0 {
			prompt += jsonReminderSuffix
		}
		completion, requestErr = e.completer.CompleteJSON(ctx, systemPrompt, prompt)
		if requestErr != nil {
			return payload, completion, calls, requestErr, nil
		}
		calls++

		var decoded T
		if parseErr = DecodeJSON(completion.Content, &decoded); parseErr == nil {
			return decoded, completion, calls, nil, nil
		}
	}
	return payload, completion, calls, nil, parseErr
}

func (e *Enricher) entry(stage, itemID string, level catalog.LedgerLevel, message string, details map[string]any) catalog.LedgerEntry {
	return catalog.LedgerEntry{
		Stage:   stage,
		ItemID:  itemID,
		When:    e.now().UTC(),
		Level:   level,
		Message: message,
		Details: details,
	}
}

func (e *Enricher) episodeErrorEntry(episode *catalog.ProgrammaticEpisode, model, notes string) catalog.EpisodeCacheEntry {
	return catalog.EpisodeCacheEntry{
		EpisodeID:      episode.EpisodeID,
		Fingerprint:    episode.Fingerprint,
		Model:          model,
		PromptVersion:  EpisodePromptVersion,
		CreatedAt:      e.now().UTC(),
		Status:         catalog.CacheStatusError,
		Notes:          notes,
		KeyPeople:      []string{},
		KeyPlaces:      []string{},
		KeyThemes:      []string{},
		YearConfidence: catalog.ConfidenceUnknown,
	}
}

func (e *Enricher) seriesErrorEntry(series catalog.ProgrammaticSeries, model, notes, title string) catalog.SeriesCacheEntry {
	return catalog.SeriesCacheEntry{
		SeriesID:       series.SeriesID,
		Fingerprint:    series.Fingerprint,
		Model:          model,
		PromptVersion:  SeriesPromptVersion,
		CreatedAt:      e.now().UTC(),
		Status:         catalog.CacheStatusError,
		Notes:          notes,
		SeriesTitle:    title,
		YearFrom:       cloneYear(series.YearFrom),
		YearTo:         cloneYear(series.YearTo),
		YearConfidence: seriesYearConfidence(series),
	}
}

// callBudget counts down remaining API calls. A nil or negative limit means
// unlimited.
type callBudget struct {
	limited   bool
	remaining int
}

func newCallBudget(maxCalls *int) *callBudget {
	if maxCalls == nil || *maxCalls < 0 {
		return &callBudget{}
	}
	return &callBudget{limited: true, remaining: *maxCalls}
}

func (b *callBudget) exhausted() bool {
	return b.limited && b.remaining <= 0
}

func (b *callBudget) spend() {
	if b.limited {
		b.remaining--
	}
}

// normalizeEpisodeEntry re-applies theme sanitization to entries loaded from
// disk so older cache files converge on the current rules.
func normalizeEpisodeEntry(entry catalog.EpisodeCacheEntry) catalog.EpisodeCacheEntry {
	themes := make([]any, len(entry.KeyThemes))
	for i, theme := range entry.KeyThemes {
		themes[i] = theme
	}
	entry.KeyThemes = sanitizeThemes(themes)
	return entry
}

// sanitizeArray keeps trimmed, non-empty, first-seen string values. A
// maxItems of 0 means unbounded.
func sanitizeArray(values []any, maxItems int) []string {
	seen := make(map[string]struct{})
	result := []string{}
	for _, value := range values {
		s, ok := value.(string)
		if !ok {
			continue
		}
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		if maxItems > 0 && len(result) >= maxItems {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

func toKebabCase(value string) string {
	lower := strings.ToLower(value)
	replaced := nonAlnumRun.ReplaceAllString(lower, "-")
	return strings.Trim(replaced, "-")
}

// sanitizeThemes kebab-cases, dedupes, and caps theme lists.
func sanitizeThemes(values []any) []string {
	seen := make(map[string]struct{})
	result := []string{}
	for _, value := range values {
		s, ok := value.(string)
		if !ok {
			continue
		}
		normalized := toKebabCase(s)
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
		if len(result) >= maxThemesPerEpisode {
			break
		}
	}
	return result
}

// ensureYear truncates a numeric year and rejects values outside the
// -9999..9999 span historians could plausibly mean.
func ensureYear(value any) *int {
	f, ok := value.(float64)
	if !ok {
		return nil
	}
	year := int(math.Trunc(f))
	if year < -9999 || year > 9999 {
		return nil
	}
	return &year
}

func normalizeYearConfidence(value any) catalog.Confidence {
	s, ok := value.(string)
	if !ok {
		return catalog.ConfidenceUnknown
	}
	c := catalog.Confidence(s)
	if c.Valid() {
		return c
	}
	return catalog.ConfidenceUnknown
}

func seriesYearConfidence(series catalog.ProgrammaticSeries) catalog.Confidence {
	if series.YearConfidence == "" {
		return catalog.ConfidenceUnknown
	}
	return series.YearConfidence
}

func cloneYear(value *int) *int {
	if value == nil {
		return nil
	}
	year := *value
	return &year
}
