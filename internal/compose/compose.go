// Package compose merges raw episodes, programmatic records, and valid LLM
// cache entries into the public catalog view. The merge is pure: it never
// mutates its inputs and never performs I/O.
package compose

import (
	"sort"
	"time"

	"seriate/internal/catalog"
	"seriate/internal/services"
)

// Input carries every layer the composer reads.
type Input struct {
	RawEpisodes  []catalog.RawEpisode
	Episodes     map[string]*catalog.ProgrammaticEpisode
	Series       map[string]catalog.ProgrammaticSeries
	EpisodeCache map[string]catalog.EpisodeCacheEntry
	SeriesCache  map[string]catalog.SeriesCacheEntry
}

// Output is the composed public view, slugs not yet assigned.
type Output struct {
	Episodes []catalog.PublicEpisode
	Series   []catalog.PublicSeries
}

// seriesSortSentinel orders series with no resolvable members after all
// dated series.
var seriesSortSentinel = time.Date(9999, 12, 31, 23, 59, 59, 999000000, time.UTC)

// Run builds public episodes and series. Cache entries participate only when
// their status is ok and their fingerprint matches the current programmatic
// fingerprint; anything else falls back to programmatic values. Episodes are
// ordered by (publishedAt, episodeId), series by earliest member publish date
// then series id.
func Run(in Input) (Output, error) {
	rawByID := make(map[string]catalog.RawEpisode, len(in.RawEpisodes))
	for _, raw := range in.RawEpisodes {
		rawByID[raw.EpisodeID] = raw
	}

	episodes := make([]catalog.PublicEpisode, 0, len(in.Episodes))
	for _, episode := range in.Episodes {
		raw, ok := rawByID[episode.EpisodeID]
		if !ok {
			return Output{}, services.Wrap(services.ErrValidation, "compose", "merge episode", "missing raw episode "+episode.EpisodeID, nil)
		}

		llm := episodeCacheFor(episode, in.EpisodeCache)

		yearFrom, yearTo := episode.YearFrom, episode.YearTo
		yearConfidence := episode.YearConfidence
		keyPeople, keyPlaces, keyThemes := []string{}, []string{}, []string{}
		if llm != nil {
			if llm.YearFrom != nil {
				yearFrom = llm.YearFrom
			}
			if llm.YearTo != nil {
				yearTo = llm.YearTo
			}
			yearConfidence = llm.YearConfidence
			keyPeople = cloneStrings(llm.KeyPeople)
			keyPlaces = cloneStrings(llm.KeyPlaces)
			keyThemes = cloneStrings(llm.KeyThemes)
		}
		yearFrom, yearTo = NormalizeYearRange(yearFrom, yearTo)
		if yearConfidence == "" {
			yearConfidence = catalog.ConfidenceUnknown
		}

		episodes = append(episodes, catalog.PublicEpisode{
			EpisodeID:          episode.EpisodeID,
			Title:              raw.Title,
			PublishedAt:        raw.PublishedAt,
			Description:        raw.Description,
			AudioURL:           raw.AudioURL,
			RSSLastSeenAt:      raw.RSSLastSeenAt,
			ItunesEpisode:      raw.Source.ItunesEpisode,
			CleanTitle:         episode.CleanTitle,
			CleanDescription:   episode.CleanDescription,
			Fingerprint:        episode.Fingerprint,
			Part:               episode.Part,
			SeriesID:           episode.SeriesID,
			SeriesKey:          episode.SeriesKey,
			SeriesKeyRaw:       episode.SeriesKeyRaw,
			GroupingConfidence: episode.GroupingConfidence,
			SubjectTags:        cloneStrings(episode.SubjectTags),
			KeyPeople:          keyPeople,
			KeyPlaces:          keyPlaces,
			KeyThemes:          keyThemes,
			YearFrom:           yearFrom,
			YearTo:             yearTo,
			YearConfidence:     yearConfidence,
		})
	}
	sort.Slice(episodes, func(i, j int) bool {
		if !episodes[i].PublishedAt.Equal(episodes[j].PublishedAt) {
			return episodes[i].PublishedAt.Before(episodes[j].PublishedAt)
		}
		return episodes[i].EpisodeID < episodes[j].EpisodeID
	})

	type sortableSeries struct {
		record  catalog.PublicSeries
		sortKey time.Time
	}

	series := make([]sortableSeries, 0, len(in.Series))
	for _, entry := range in.Series {
		llm := seriesCacheFor(entry, in.SeriesCache)

		yearFrom, yearTo := entry.YearFrom, entry.YearTo
		yearConfidence := entry.YearConfidence
		title := entry.TitleFallback
		summary := ""
		var tonal []string
		if llm != nil {
			if llm.YearFrom != nil {
				yearFrom = llm.YearFrom
			}
			if llm.YearTo != nil {
				yearTo = llm.YearTo
			}
			yearConfidence = llm.YearConfidence
			if llm.SeriesTitle != "" {
				title = llm.SeriesTitle
			}
			summary = llm.NarrativeSummary
			tonal = cloneStrings(llm.TonalDescriptors)
		}
		yearFrom, yearTo = NormalizeYearRange(yearFrom, yearTo)
		if yearConfidence == "" {
			yearConfidence = catalog.ConfidenceUnknown
		}

		sortKey := seriesSortSentinel
		for _, episodeID := range entry.EpisodeIDs {
			raw, ok := rawByID[episodeID]
			if !ok {
				continue
			}
			if raw.PublishedAt.Before(sortKey) {
				sortKey = raw.PublishedAt
			}
		}

		series = append(series, sortableSeries{
			sortKey: sortKey,
			record: catalog.PublicSeries{
				SeriesID:           entry.SeriesID,
				SeriesTitle:        title,
				NarrativeSummary:   summary,
				TonalDescriptors:   tonal,
				SeriesKey:          entry.SeriesKey,
				SeriesKeyRaw:       entry.SeriesKeyRaw,
				GroupingConfidence: entry.GroupingConfidence,
				EpisodeIDs:         cloneStrings(entry.EpisodeIDs),
				MemberFingerprints: cloneStrings(entry.MemberFingerprints),
				Fingerprint:        entry.Fingerprint,
				YearFrom:           yearFrom,
				YearTo:             yearTo,
				YearConfidence:     yearConfidence,
				Derived:            cloneDerived(entry.Derived),
				RSSLastSeenAt:      entry.RSSLastSeenAt,
			},
		})
	}
	sort.Slice(series, func(i, j int) bool {
		if !series[i].sortKey.Equal(series[j].sortKey) {
			return series[i].sortKey.Before(series[j].sortKey)
		}
		return series[i].record.SeriesID < series[j].record.SeriesID
	})

	out := Output{Episodes: episodes, Series: make([]catalog.PublicSeries, 0, len(series))}
	for _, s := range series {
		out.Series = append(out.Series, s.record)
	}
	return out, nil
}

// NormalizeYearRange swaps an inverted span so yearFrom never exceeds yearTo.
func NormalizeYearRange(yearFrom, yearTo *int) (*int, *int) {
	if yearFrom != nil && yearTo != nil && *yearFrom > *yearTo {
		return yearTo, yearFrom
	}
	return yearFrom, yearTo
}

// episodeCacheFor returns the cache entry for the episode's current
// fingerprint, or nil when absent, stale, or not ok.
func episodeCacheFor(episode *catalog.ProgrammaticEpisode, cache map[string]catalog.EpisodeCacheEntry) *catalog.EpisodeCacheEntry {
	entry, ok := cache[catalog.CacheKey(episode.EpisodeID, episode.Fingerprint)]
	if !ok || entry.Status != catalog.CacheStatusOK {
		return nil
	}
	return &entry
}

func seriesCacheFor(series catalog.ProgrammaticSeries, cache map[string]catalog.SeriesCacheEntry) *catalog.SeriesCacheEntry {
	entry, ok := cache[catalog.CacheKey(series.SeriesID, series.Fingerprint)]
	if !ok || entry.Status != catalog.CacheStatusOK {
		return nil
	}
	return &entry
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	return append([]string(nil), values...)
}

func cloneDerived(derived catalog.SeriesDerived) catalog.SeriesDerived {
	out := derived
	out.EpisodeSummaries = append([]catalog.EpisodeSummary(nil), derived.EpisodeSummaries...)
	out.SubjectTags = cloneStrings(derived.SubjectTags)
	return out
}
