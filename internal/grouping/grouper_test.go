package grouping

import (
	"testing"
	"time"

	"seriate/internal/catalog"
	"seriate/internal/logging"
	"seriate/internal/slug"
)

func testGrouper(t *testing.T) *Grouper {
	t.Helper()
	return NewGrouper(slug.NewNamer(nil, nil), DefaultMaxGapDays, logging.NewNop())
}

func makeEpisode(id, title string, published time.Time) *catalog.ProgrammaticEpisode {
	return &catalog.ProgrammaticEpisode{
		EpisodeID:      id,
		CleanTitle:     title,
		PublishedAt:    published,
		RSSLastSeenAt:  published.Add(time.Hour),
		Fingerprint:    catalog.EpisodeFingerprint(title, ""),
		YearConfidence: catalog.ConfidenceUnknown,
	}
}

func episodeMap(eps ...*catalog.ProgrammaticEpisode) map[string]*catalog.ProgrammaticEpisode {
	out := make(map[string]*catalog.ProgrammaticEpisode, len(eps))
	for _, ep := range eps {
		out[ep.EpisodeID] = ep
	}
	return out
}

func TestRunGroupsConsecutiveParts(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	eps := []*catalog.ProgrammaticEpisode{
		makeEpisode("ep-1", "The Fall of Rome: Part 1", base),
		makeEpisode("ep-2", "The Fall of Rome: Part 2", base.AddDate(0, 0, 7)),
		makeEpisode("ep-3", "The Fall of Rome: Part 3", base.AddDate(0, 0, 14)),
	}
	eps[0].YearFrom = catalog.Int(410)
	eps[0].YearConfidence = catalog.ConfidenceHigh
	eps[2].YearTo = catalog.Int(476)
	eps[2].YearConfidence = catalog.ConfidenceMedium

	series := testGrouper(t).Run(episodeMap(eps...), nil)

	if len(series) != 1 {
		t.Fatalf("expected 1 series, got %d", len(series))
	}
	got, ok := series["fall-rome-20240101"]
	if !ok {
		t.Fatalf("missing expected series id, got %v", keysOf(series))
	}
	if len(got.EpisodeIDs) != 3 || got.EpisodeIDs[0] != "ep-1" || got.EpisodeIDs[2] != "ep-3" {
		t.Fatalf("episode order = %v", got.EpisodeIDs)
	}
	if got.SeriesKey != "the fall of rome" {
		t.Fatalf("series key = %q", got.SeriesKey)
	}
	if got.YearFrom == nil || *got.YearFrom != 410 || got.YearTo == nil || *got.YearTo != 476 {
		t.Fatalf("year span = %v-%v", got.YearFrom, got.YearTo)
	}
	// ep-2 has no year confidence, so the aggregate is the weakest member.
	if got.YearConfidence != catalog.ConfidenceUnknown {
		t.Fatalf("year confidence = %q", got.YearConfidence)
	}
	if got.Fingerprint != catalog.SeriesFingerprint(got.SeriesID, got.MemberFingerprints) {
		t.Fatal("series fingerprint does not match members")
	}
	if got.Derived.EpisodeCount != 3 || len(got.Derived.EpisodeSummaries) != 3 {
		t.Fatalf("derived = %+v", got.Derived)
	}
	for _, ep := range eps {
		if ep.SeriesID != "fall-rome-20240101" || ep.GroupingConfidence != catalog.ConfidenceHigh {
			t.Fatalf("episode %s not grouped: %+v", ep.EpisodeID, ep)
		}
	}
}

func TestRunGapClosesBucket(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	eps := []*catalog.ProgrammaticEpisode{
		makeEpisode("ep-1", "The Anarchy: Part 1", base),
		makeEpisode("ep-2", "The Anarchy: Part 2", base.AddDate(0, 0, 10)),
		makeEpisode("ep-3", "The Anarchy: Part 3", base.AddDate(0, 0, 40)),
	}

	series := testGrouper(t).Run(episodeMap(eps...), nil)

	got, ok := series["anarchy-20240301"]
	if !ok {
		t.Fatalf("missing series, got %v", keysOf(series))
	}
	if len(got.EpisodeIDs) != 2 {
		t.Fatalf("expected gap to close after two members, got %v", got.EpisodeIDs)
	}
	// The late part 3 closed the bucket without joining a new one and ends up
	// standalone.
	if eps[2].SeriesID != "" || eps[2].Part != nil || eps[2].GroupingConfidence != catalog.ConfidenceLow {
		t.Fatalf("late episode not standalone: %+v", eps[2])
	}
}

func TestRunNonPartOneNeverOpensBucket(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	eps := []*catalog.ProgrammaticEpisode{
		makeEpisode("ep-1", "The Crusades: Part 2", base),
		makeEpisode("ep-2", "The Crusades: Part 3", base.AddDate(0, 0, 7)),
	}

	series := testGrouper(t).Run(episodeMap(eps...), nil)

	if len(series) != 0 {
		t.Fatalf("expected no series, got %v", keysOf(series))
	}
	for _, ep := range eps {
		if ep.SeriesID != "" || ep.SeriesKey != "" || ep.Part != nil {
			t.Fatalf("episode %s should be standalone: %+v", ep.EpisodeID, ep)
		}
	}
}

func TestRunPartOneRestartsSeries(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	eps := []*catalog.ProgrammaticEpisode{
		makeEpisode("ep-1", "Vikings: Part 1", base),
		makeEpisode("ep-2", "Vikings: Part 2", base.AddDate(0, 0, 7)),
		makeEpisode("ep-3", "Vikings: Part 1", base.AddDate(0, 0, 14)),
		makeEpisode("ep-4", "Vikings: Part 2", base.AddDate(0, 0, 21)),
	}

	series := testGrouper(t).Run(episodeMap(eps...), nil)

	if len(series) != 2 {
		t.Fatalf("expected 2 series, got %v", keysOf(series))
	}
	if _, ok := series["vikings-20240101"]; !ok {
		t.Fatalf("missing first run: %v", keysOf(series))
	}
	if _, ok := series["vikings-20240115"]; !ok {
		t.Fatalf("missing second run: %v", keysOf(series))
	}
}

func TestRunDiscardsSingletons(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ep := makeEpisode("ep-1", "Agincourt: Part 1", base)

	series := testGrouper(t).Run(episodeMap(ep), nil)

	if len(series) != 0 {
		t.Fatalf("expected singleton to be discarded, got %v", keysOf(series))
	}
	if ep.SeriesID != "" || ep.Part != nil || ep.GroupingConfidence != catalog.ConfidenceLow {
		t.Fatalf("singleton member should reset to standalone: %+v", ep)
	}
}

func TestRunAppliesOverrides(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	eps := []*catalog.ProgrammaticEpisode{
		makeEpisode("ep-1", "The Tudors: Part 1", base),
		makeEpisode("ep-2", "The Tudors: Part 2", base.AddDate(0, 0, 7)),
		makeEpisode("ep-3", "A Stray Episode", base.AddDate(0, 0, 8)),
	}

	overrides := []Override{{
		SeriesID:     "tudors-custom",
		EpisodeIDs:   []string{"ep-1", "ep-2", "ep-3"},
		SeriesKeyRaw: "The Tudors",
	}}

	series := testGrouper(t).Run(episodeMap(eps...), overrides)

	if _, ok := series["tudors-20240101"]; ok {
		t.Fatal("automatic series should be deleted after members detached")
	}
	got, ok := series["tudors-custom"]
	if !ok {
		t.Fatalf("missing override series, got %v", keysOf(series))
	}
	if len(got.EpisodeIDs) != 3 {
		t.Fatalf("override members = %v", got.EpisodeIDs)
	}
	if got.SeriesKeyRaw != "The Tudors" || got.SeriesKey != "the tudors" {
		t.Fatalf("override key = %q / %q", got.SeriesKeyRaw, got.SeriesKey)
	}
	if eps[2].SeriesID != "tudors-custom" || eps[2].GroupingConfidence != catalog.ConfidenceHigh {
		t.Fatalf("stray episode not attached: %+v", eps[2])
	}
	if got.Fingerprint != catalog.SeriesFingerprint("tudors-custom", got.MemberFingerprints) {
		t.Fatal("override series fingerprint mismatch")
	}
}

func TestRunOverrideDetachKeepsDonorSeries(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	eps := []*catalog.ProgrammaticEpisode{
		makeEpisode("ep-1", "The Normans: Part 1", base),
		makeEpisode("ep-2", "The Normans: Part 2", base.AddDate(0, 0, 7)),
		makeEpisode("ep-3", "The Normans: Part 3", base.AddDate(0, 0, 14)),
	}

	overrides := []Override{{
		SeriesID:   "normans-extra",
		EpisodeIDs: []string{"ep-3"},
	}}

	series := testGrouper(t).Run(episodeMap(eps...), overrides)

	donor, ok := series["normans-20240101"]
	if !ok {
		t.Fatalf("donor series missing, got %v", keysOf(series))
	}
	if len(donor.EpisodeIDs) != 2 {
		t.Fatalf("donor members = %v", donor.EpisodeIDs)
	}
	if _, ok := series["normans-extra"]; !ok {
		t.Fatalf("override series missing, got %v", keysOf(series))
	}
}

func keysOf(series map[string]catalog.ProgrammaticSeries) []string {
	out := make([]string, 0, len(series))
	for id := range series {
		out = append(out, id)
	}
	return out
}
