package pipeline

import (
	"seriate/internal/catalog"
	"seriate/internal/compose"
)

// applyEpisodeYearSpans folds enriched year spans back onto the programmatic
// layer. A valid cache entry (status ok at the episode's current fingerprint)
// replaces the programmatic span wholesale, even when the entry's years are
// nil; anything else leaves the programmatic values in place. Spans are
// normalized so yearFrom never exceeds yearTo.
func applyEpisodeYearSpans(episodes map[string]*catalog.ProgrammaticEpisode, cache map[string]catalog.EpisodeCacheEntry) {
	for _, episode := range episodes {
		entry, ok := cache[catalog.CacheKey(episode.EpisodeID, episode.Fingerprint)]
		valid := ok && entry.Status == catalog.CacheStatusOK

		yearFrom, yearTo := episode.YearFrom, episode.YearTo
		if valid {
			yearFrom, yearTo = entry.YearFrom, entry.YearTo
		}
		episode.YearFrom, episode.YearTo = compose.NormalizeYearRange(yearFrom, yearTo)

		if valid {
			episode.YearConfidence = entry.YearConfidence
		}
		if episode.YearConfidence == "" {
			episode.YearConfidence = catalog.ConfidenceUnknown
		}
	}
}

// applySeriesYearSpans aggregates member spans onto each series: the span is
// the min/max over every member year bound, and the confidence is the weakest
// member confidence. Series with no dated members get a nil span.
func applySeriesYearSpans(series map[string]catalog.ProgrammaticSeries, episodes map[string]*catalog.ProgrammaticEpisode) {
	for id, s := range series {
		var years []int
		var confidences []catalog.Confidence
		for _, episodeID := range s.EpisodeIDs {
			member, ok := episodes[episodeID]
			if !ok {
				continue
			}
			if member.YearFrom != nil {
				years = append(years, *member.YearFrom)
			}
			if member.YearTo != nil {
				years = append(years, *member.YearTo)
			}
			confidence := member.YearConfidence
			if confidence == "" {
				confidence = catalog.ConfidenceUnknown
			}
			confidences = append(confidences, confidence)
		}

		if len(years) == 0 {
			s.YearFrom, s.YearTo = nil, nil
			s.YearConfidence = catalog.ConfidenceUnknown
			series[id] = s
			continue
		}

		minYear, maxYear := years[0], years[0]
		for _, year := range years[1:] {
			if year < minYear {
				minYear = year
			}
			if year > maxYear {
				maxYear = year
			}
		}
		s.YearFrom, s.YearTo = compose.NormalizeYearRange(catalog.Int(minYear), catalog.Int(maxYear))
		s.YearConfidence = catalog.WeakestConfidence(confidences...)
		series[id] = s
	}
}

// pruneSeriesCache drops cache entries whose series no longer exists in the
// current grouping, keeping the persisted cache from growing stale bodies.
func pruneSeriesCache(cache map[string]catalog.SeriesCacheEntry, series map[string]catalog.ProgrammaticSeries) map[string]catalog.SeriesCacheEntry {
	out := make(map[string]catalog.SeriesCacheEntry, len(cache))
	for key, entry := range cache {
		if _, ok := series[entry.SeriesID]; ok {
			out[key] = entry
		}
	}
	return out
}
