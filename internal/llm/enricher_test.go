package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"seriate/internal/catalog"
)

type fakeCompleter struct {
	calls   int
	respond func(systemPrompt, userPrompt string) (Completion, error)
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, systemPrompt, userPrompt string) (Completion, error) {
	f.calls++
	if f.respond != nil {
		return f.respond(systemPrompt, userPrompt)
	}
	return Completion{Model: "test-model", Content: `{"keyPeople":[],"keyPlaces":[],"keyThemes":[],"yearFrom":null,"yearTo":null}`}, nil
}

func (f *fakeCompleter) PrimaryModel() string { return "test-model" }

func testEpisode(id string, published time.Time) *catalog.ProgrammaticEpisode {
	return &catalog.ProgrammaticEpisode{
		EpisodeID:        id,
		CleanTitle:       "Title " + id,
		CleanDescription: "Description " + id,
		Fingerprint:      "fp-" + id,
		PublishedAt:      published,
	}
}

func testSeries(id string, summaries int) catalog.ProgrammaticSeries {
	s := catalog.ProgrammaticSeries{
		SeriesID:      id,
		Fingerprint:   "fp-" + id,
		TitleFallback: "Fallback " + id,
	}
	for i := 0; i < summaries; i++ {
		s.Derived.EpisodeSummaries = append(s.Derived.EpisodeSummaries, catalog.EpisodeSummary{
			Part:       catalog.Int(i + 1),
			CleanTitle: "Member",
		})
	}
	s.Derived.EpisodeCount = summaries
	return s
}

func TestEnrichEpisodesSanitizesResponse(t *testing.T) {
	fake := &fakeCompleter{respond: func(_, _ string) (Completion, error) {
		return Completion{Model: "test-model", Content: `{
			"keyPeople": [" Horatio Nelson ", "Horatio Nelson", 42],
			"keyPlaces": ["Trafalgar"],
			"keyThemes": ["Naval Warfare", "naval warfare", "British Navy"],
			"yearFrom": 1803.7,
			"yearTo": 99999
		}`}, nil
	}}
	enricher := NewEnricher(fake)

	ep := testEpisode("ep-1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	result := enricher.EnrichEpisodes(context.Background(), map[string]*catalog.ProgrammaticEpisode{"ep-1": ep}, nil, Options{})

	entry, ok := result.Cache[catalog.CacheKey("ep-1", ep.Fingerprint)]
	if !ok {
		t.Fatal("missing cache entry")
	}
	if entry.Status != catalog.CacheStatusOK {
		t.Fatalf("status = %q", entry.Status)
	}
	if len(entry.KeyPeople) != 1 || entry.KeyPeople[0] != "Horatio Nelson" {
		t.Fatalf("key people = %v", entry.KeyPeople)
	}
	if len(entry.KeyThemes) != 2 || entry.KeyThemes[0] != "naval-warfare" || entry.KeyThemes[1] != "british-navy" {
		t.Fatalf("key themes = %v", entry.KeyThemes)
	}
	if entry.YearFrom == nil || *entry.YearFrom != 1803 {
		t.Fatalf("year from = %v", entry.YearFrom)
	}
	if entry.YearTo != nil {
		t.Fatalf("out-of-range year kept: %v", entry.YearTo)
	}
	if entry.PromptVersion != EpisodePromptVersion {
		t.Fatalf("prompt version = %q", entry.PromptVersion)
	}
	if result.CallsMade != 1 {
		t.Fatalf("calls made = %d", result.CallsMade)
	}
}

func TestEnrichEpisodesSkipsCachedUnlessForced(t *testing.T) {
	fake := &fakeCompleter{}
	enricher := NewEnricher(fake)

	ep := testEpisode("ep-1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	existing := map[string]catalog.EpisodeCacheEntry{
		catalog.CacheKey("ep-1", ep.Fingerprint): {
			EpisodeID: "ep-1", Fingerprint: ep.Fingerprint, Status: catalog.CacheStatusOK,
		},
	}
	episodes := map[string]*catalog.ProgrammaticEpisode{"ep-1": ep}

	result := enricher.EnrichEpisodes(context.Background(), episodes, existing, Options{})
	if result.CallsMade != 0 || fake.calls != 0 {
		t.Fatalf("cached episode re-enriched: calls=%d", fake.calls)
	}

	result = enricher.EnrichEpisodes(context.Background(), episodes, existing, Options{
		ForceIDs: map[string]struct{}{"ep-1": {}},
	})
	if result.CallsMade != 1 {
		t.Fatalf("force did not re-enrich: calls=%d", result.CallsMade)
	}
}

func TestEnrichEpisodesBudgetExhaustion(t *testing.T) {
	fake := &fakeCompleter{}
	enricher := NewEnricher(fake)

	early := testEpisode("ep-early", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	late := testEpisode("ep-late", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	episodes := map[string]*catalog.ProgrammaticEpisode{"ep-early": early, "ep-late": late}

	result := enricher.EnrichEpisodes(context.Background(), episodes, nil, Options{MaxCalls: catalog.Int(1)})
	if result.CallsMade != 1 {
		t.Fatalf("calls made = %d", result.CallsMade)
	}
	// The older episode wins the only budgeted call.
	if _, ok := result.Cache[catalog.CacheKey("ep-early", early.Fingerprint)]; !ok {
		t.Fatal("early episode not enriched")
	}
	if len(result.Ledger) != 1 {
		t.Fatalf("ledger = %+v", result.Ledger)
	}
	line := result.Ledger[0]
	if line.Level != catalog.LedgerInfo || line.ItemID != "ep-late" {
		t.Fatalf("ledger line = %+v", line)
	}
	if line.Message != "Skipped LLM enrichment due to max call limit" {
		t.Fatalf("ledger message = %q", line.Message)
	}
}

func TestEnrichEpisodesPlanOnly(t *testing.T) {
	fake := &fakeCompleter{}
	enricher := NewEnricher(fake)

	ep := testEpisode("ep-1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	result := enricher.EnrichEpisodes(context.Background(), map[string]*catalog.ProgrammaticEpisode{"ep-1": ep}, nil, Options{PlanOnly: true})

	if fake.calls != 0 {
		t.Fatalf("plan mode made %d calls", fake.calls)
	}
	if len(result.Planned) != 1 || result.Planned[0].ID != "ep-1" || result.Planned[0].Fingerprint != ep.Fingerprint {
		t.Fatalf("planned = %+v", result.Planned)
	}
	if len(result.Cache) != 0 {
		t.Fatalf("plan mode wrote cache entries: %+v", result.Cache)
	}
}

func TestEnrichEpisodesRequestFailure(t *testing.T) {
	fake := &fakeCompleter{respond: func(_, _ string) (Completion, error) {
		return Completion{}, errors.New("boom")
	}}
	enricher := NewEnricher(fake)

	ep := testEpisode("ep-1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	result := enricher.EnrichEpisodes(context.Background(), map[string]*catalog.ProgrammaticEpisode{"ep-1": ep}, nil, Options{})

	if result.CallsMade != 0 {
		t.Fatalf("failed request counted: %d", result.CallsMade)
	}
	entry := result.Cache[catalog.CacheKey("ep-1", ep.Fingerprint)]
	if entry.Status != catalog.CacheStatusError || entry.Notes != "boom" {
		t.Fatalf("error entry = %+v", entry)
	}
	if entry.Model != "test-model" {
		t.Fatalf("error entry model = %q", entry.Model)
	}
	if len(result.Ledger) != 1 || result.Ledger[0].Message != "OpenAI request failed" {
		t.Fatalf("ledger = %+v", result.Ledger)
	}
}

func TestEnrichEpisodesParseFailure(t *testing.T) {
	var prompts []string
	fake := &fakeCompleter{respond: func(_, userPrompt string) (Completion, error) {
		prompts = append(prompts, userPrompt)
		return Completion{Model: "test-model", Content: "not json at all"}, nil
	}}
	enricher := NewEnricher(fake)

	ep := testEpisode("ep-1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	result := enricher.EnrichEpisodes(context.Background(), map[string]*catalog.ProgrammaticEpisode{"ep-1": ep}, nil, Options{})

	// Undecodable replies are re-asked twice; every call counts against the
	// budget even though parsing failed.
	if fake.calls != 3 || result.CallsMade != 3 {
		t.Fatalf("calls = %d, counted = %d", fake.calls, result.CallsMade)
	}
	if strings.HasSuffix(prompts[0], jsonReminderSuffix) {
		t.Fatal("first prompt already carried the reminder")
	}
	for _, prompt := range prompts[1:] {
		if !strings.HasSuffix(prompt, jsonReminderSuffix) {
			t.Fatalf("retry prompt missing reminder: %q", prompt)
		}
	}
	entry := result.Cache[catalog.CacheKey("ep-1", ep.Fingerprint)]
	if entry.Status != catalog.CacheStatusError {
		t.Fatalf("entry status = %q", entry.Status)
	}
	if len(result.Ledger) != 1 || result.Ledger[0].Details["raw"] != "not json at all" {
		t.Fatalf("ledger = %+v", result.Ledger)
	}
}

func TestEnrichEpisodesRecoversFromProseReply(t *testing.T) {
	fake := &fakeCompleter{}
	fake.respond = func(_, userPrompt string) (Completion, error) {
		if fake.calls == 1 {
			return Completion{Model: "test-model", Content: "Sure! Here is the JSON you asked for."}, nil
		}
		if !strings.HasSuffix(userPrompt, jsonReminderSuffix) {
			return Completion{}, errors.New("retry prompt missing reminder")
		}
		return Completion{Model: "test-model", Content: `{"keyPeople":["Nelson"],"keyPlaces":[],"keyThemes":[],"yearFrom":1805,"yearTo":1805,"yearConfidence":"high"}`}, nil
	}
	enricher := NewEnricher(fake)

	ep := testEpisode("ep-1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	result := enricher.EnrichEpisodes(context.Background(), map[string]*catalog.ProgrammaticEpisode{"ep-1": ep}, nil, Options{})

	if fake.calls != 2 || result.CallsMade != 2 {
		t.Fatalf("calls = %d, counted = %d", fake.calls, result.CallsMade)
	}
	entry := result.Cache[catalog.CacheKey("ep-1", ep.Fingerprint)]
	if entry.Status != catalog.CacheStatusOK {
		t.Fatalf("entry status = %q (notes %q)", entry.Status, entry.Notes)
	}
	if len(entry.KeyPeople) != 1 || entry.KeyPeople[0] != "Nelson" {
		t.Fatalf("key people = %v", entry.KeyPeople)
	}
	if len(result.Ledger) != 0 {
		t.Fatalf("ledger = %+v", result.Ledger)
	}
}

func TestEnrichSeriesSkipsWithoutSummaries(t *testing.T) {
	fake := &fakeCompleter{}
	enricher := NewEnricher(fake)

	series := map[string]catalog.ProgrammaticSeries{"s1": testSeries("s1", 0)}
	result := enricher.EnrichSeries(context.Background(), series, nil, Options{})

	if fake.calls != 0 {
		t.Fatalf("series without summaries enriched: %d calls", fake.calls)
	}
	if len(result.Ledger) != 1 || result.Ledger[0].Level != catalog.LedgerWarn {
		t.Fatalf("ledger = %+v", result.Ledger)
	}
	if result.Ledger[0].Message != "Series lacks episode summaries; skipping enrichment" {
		t.Fatalf("ledger message = %q", result.Ledger[0].Message)
	}
}

func TestEnrichSeriesTitleFallback(t *testing.T) {
	fake := &fakeCompleter{respond: func(_, _ string) (Completion, error) {
		return Completion{Model: "test-model", Content: `{"seriesTitle":"  ","narrativeSummary":"Two sentences."}`}, nil
	}}
	enricher := NewEnricher(fake)

	s := testSeries("s1", 2)
	s.YearFrom = catalog.Int(1066)
	s.YearTo = catalog.Int(1087)
	s.YearConfidence = catalog.ConfidenceHigh

	result := enricher.EnrichSeries(context.Background(), map[string]catalog.ProgrammaticSeries{"s1": s}, nil, Options{})

	entry := result.Cache[catalog.CacheKey("s1", s.Fingerprint)]
	if entry.SeriesTitle != "Fallback s1" {
		t.Fatalf("series title = %q", entry.SeriesTitle)
	}
	if entry.NarrativeSummary != "Two sentences." {
		t.Fatalf("summary = %q", entry.NarrativeSummary)
	}
	// Series year spans come from the programmatic aggregate, not the model.
	if entry.YearFrom == nil || *entry.YearFrom != 1066 || entry.YearConfidence != catalog.ConfidenceHigh {
		t.Fatalf("years = %v-%v %q", entry.YearFrom, entry.YearTo, entry.YearConfidence)
	}
}

func TestEnrichSeriesParseFailureKeepsFallbackTitle(t *testing.T) {
	fake := &fakeCompleter{respond: func(_, _ string) (Completion, error) {
		return Completion{Model: "test-model", Content: "garbage"}, nil
	}}
	enricher := NewEnricher(fake)

	s := testSeries("s1", 1)
	result := enricher.EnrichSeries(context.Background(), map[string]catalog.ProgrammaticSeries{"s1": s}, nil, Options{})

	if fake.calls != 3 {
		t.Fatalf("calls = %d", fake.calls)
	}
	entry := result.Cache[catalog.CacheKey("s1", s.Fingerprint)]
	if entry.Status != catalog.CacheStatusError {
		t.Fatalf("status = %q", entry.Status)
	}
	if entry.SeriesTitle != "Fallback s1" {
		t.Fatalf("series title = %q", entry.SeriesTitle)
	}
}

func TestEnrichSeriesRecoversFromProseReply(t *testing.T) {
	fake := &fakeCompleter{}
	fake.respond = func(_, userPrompt string) (Completion, error) {
		if fake.calls == 1 {
			return Completion{Model: "test-model", Content: "Of course, here it is:"}, nil
		}
		if !strings.HasSuffix(userPrompt, jsonReminderSuffix) {
			return Completion{}, errors.New("retry prompt missing reminder")
		}
		return Completion{Model: "test-model", Content: `{"seriesTitle":"The Norman Conquest","narrativeSummary":"Two sentences.","tonalDescriptors":["epic"]}`}, nil
	}
	enricher := NewEnricher(fake)

	s := testSeries("s1", 2)
	result := enricher.EnrichSeries(context.Background(), map[string]catalog.ProgrammaticSeries{"s1": s}, nil, Options{})

	if fake.calls != 2 || result.CallsMade != 2 {
		t.Fatalf("calls = %d, counted = %d", fake.calls, result.CallsMade)
	}
	entry := result.Cache[catalog.CacheKey("s1", s.Fingerprint)]
	if entry.Status != catalog.CacheStatusOK {
		t.Fatalf("status = %q (notes %q)", entry.Status, entry.Notes)
	}
	if entry.SeriesTitle != "The Norman Conquest" {
		t.Fatalf("series title = %q", entry.SeriesTitle)
	}
	if len(result.Ledger) != 0 {
		t.Fatalf("ledger = %+v", result.Ledger)
	}
}
