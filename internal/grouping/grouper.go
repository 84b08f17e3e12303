package grouping

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"seriate/internal/catalog"
	"seriate/internal/slug"
	"seriate/internal/titleparse"
)

// DefaultMaxGapDays is the publish-gap window that closes an open bucket.
const DefaultMaxGapDays = 14

// Grouper runs the series clustering pass.
type Grouper struct {
	namer      *slug.Namer
	maxGapDays int
	logger     *slog.Logger
}

// NewGrouper constructs a grouper. maxGapDays values below 1 fall back to
// DefaultMaxGapDays.
func NewGrouper(namer *slug.Namer, maxGapDays int, logger *slog.Logger) *Grouper {
	if maxGapDays < 1 {
		maxGapDays = DefaultMaxGapDays
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Grouper{namer: namer, maxGapDays: maxGapDays, logger: logger}
}

type seriesKeyInfo struct {
	raw        string
	normalized string
	slug       string
}

// bucket is one in-progress series keyed by series-key slug.
type bucket struct {
	slug            string
	seriesKeyRaw    string
	seriesKey       string
	firstPublished  time.Time
	lastPublished   time.Time
	latestRSSSeenAt *time.Time
	episodes        []*catalog.ProgrammaticEpisode
}

// Run groups episodes into series, mutating each episode's part, series key,
// series id, and grouping confidence in place, and returns the assembled
// series keyed by series id. Overrides are applied after automatic grouping.
// Episodes left without a series are reset to standalone form.
func (g *Grouper) Run(episodes map[string]*catalog.ProgrammaticEpisode, overrides []Override) map[string]catalog.ProgrammaticSeries {
	ordered := make([]*catalog.ProgrammaticEpisode, 0, len(episodes))
	for _, ep := range episodes {
		ordered = append(ordered, ep)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].PublishedAt.Equal(ordered[j].PublishedAt) {
			return ordered[i].PublishedAt.Before(ordered[j].PublishedAt)
		}
		return ordered[i].EpisodeID < ordered[j].EpisodeID
	})

	series := make(map[string]catalog.ProgrammaticSeries)
	open := make(map[string]*bucket)
	var completed []*bucket

	finalize := func(key string) {
		b, ok := open[key]
		if !ok {
			return
		}
		delete(open, key)
		completed = append(completed, b)
	}

	maxGap := time.Duration(g.maxGapDays) * 24 * time.Hour

	for _, ep := range ordered {
		keyInfo := g.deriveSeriesKey(ep.CleanTitle)
		part := titleparse.ParsePartNumber(ep.CleanTitle)

		ep.SeriesID = ""
		ep.GroupingConfidence = catalog.ConfidenceLow
		ep.Part = part
		if keyInfo != nil {
			ep.SeriesKeyRaw = keyInfo.raw
			ep.SeriesKey = keyInfo.normalized
		} else {
			ep.SeriesKeyRaw = ""
			ep.SeriesKey = ""
		}

		if keyInfo == nil || part == nil {
			continue
		}

		current := open[keyInfo.slug]
		isPartOne := *part == 1

		openNew := func() {
			latest := ep.RSSLastSeenAt
			open[keyInfo.slug] = &bucket{
				slug:            keyInfo.slug,
				seriesKeyRaw:    keyInfo.raw,
				seriesKey:       keyInfo.normalized,
				firstPublished:  ep.PublishedAt,
				lastPublished:   ep.PublishedAt,
				latestRSSSeenAt: nonZeroTime(latest),
				episodes:        []*catalog.ProgrammaticEpisode{ep},
			}
		}

		if current == nil || isPartOne {
			if current != nil {
				finalize(keyInfo.slug)
			}
			if isPartOne {
				openNew()
			}
			continue
		}

		if ep.PublishedAt.Sub(current.lastPublished) > maxGap {
			// The closing episode is dropped, not retried against a fresh
			// bucket.
			finalize(keyInfo.slug)
			continue
		}

		current.episodes = append(current.episodes, ep)
		current.lastPublished = ep.PublishedAt
		if seen := nonZeroTime(ep.RSSLastSeenAt); seen != nil {
			if current.latestRSSSeenAt == nil || seen.After(*current.latestRSSSeenAt) {
				current.latestRSSSeenAt = seen
			}
		}
	}

	openKeys := make([]string, 0, len(open))
	for key := range open {
		openKeys = append(openKeys, key)
	}
	sort.Strings(openKeys)
	for _, key := range openKeys {
		finalize(key)
	}

	for _, b := range completed {
		if len(b.episodes) < 2 {
			g.logger.Debug("discarding singleton series bucket",
				slog.String("series_key", b.seriesKey),
				slog.Int("episodes", len(b.episodes)))
			continue
		}
		seriesID := b.slug + "-" + b.firstPublished.UTC().Format("20060102")
		g.rebuildSeries(series, seriesID, b.episodes, b.seriesKeyRaw)
	}

	g.applyOverrides(series, episodes, overrides)

	for _, ep := range episodes {
		if ep.SeriesID == "" {
			ep.Part = nil
			ep.SeriesKey = ""
			ep.SeriesKeyRaw = ""
			ep.GroupingConfidence = catalog.ConfidenceLow
		}
	}

	return series
}

// rebuildSeries orders the members, refreshes their grouping fields, and
// writes the aggregated series record. Shared by automatic grouping and
// override application so both produce identical aggregation.
func (g *Grouper) rebuildSeries(series map[string]catalog.ProgrammaticSeries, seriesID string, members []*catalog.ProgrammaticEpisode, seriesKeyRaw string) {
	if len(members) == 0 {
		return
	}

	ordered := append([]*catalog.ProgrammaticEpisode(nil), members...)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Part != nil && b.Part != nil && *a.Part != *b.Part {
			return *a.Part < *b.Part
		}
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.Before(b.PublishedAt)
		}
		return a.EpisodeID < b.EpisodeID
	})

	effectiveKeyRaw := seriesKeyRaw
	if effectiveKeyRaw == "" {
		for _, ep := range ordered {
			if ep.SeriesKeyRaw != "" {
				effectiveKeyRaw = ep.SeriesKeyRaw
				break
			}
		}
	}
	if effectiveKeyRaw == "" {
		if keyInfo := g.deriveSeriesKey(ordered[0].CleanTitle); keyInfo != nil {
			effectiveKeyRaw = keyInfo.raw
		}
	}
	if effectiveKeyRaw == "" {
		effectiveKeyRaw = seriesID
	}
	seriesKey := strings.ToLower(effectiveKeyRaw)

	episodeIDs := make([]string, 0, len(ordered))
	memberFingerprints := make([]string, 0, len(ordered))
	summaries := make([]catalog.EpisodeSummary, 0, len(ordered))
	confidences := make([]catalog.Confidence, 0, len(ordered))
	var yearFrom, yearTo *int
	var latestSeen *time.Time

	for _, ep := range ordered {
		if part := titleparse.ParsePartNumber(ep.CleanTitle); part != nil {
			ep.Part = part
		}
		ep.SeriesID = seriesID
		ep.SeriesKeyRaw = effectiveKeyRaw
		ep.SeriesKey = seriesKey
		ep.GroupingConfidence = catalog.ConfidenceHigh

		episodeIDs = append(episodeIDs, ep.EpisodeID)
		memberFingerprints = append(memberFingerprints, ep.Fingerprint)
		summaries = append(summaries, catalog.EpisodeSummary{
			Part:             ep.Part,
			CleanTitle:       ep.CleanTitle,
			CleanDescription: ep.CleanDescription,
		})

		conf := ep.YearConfidence
		if conf == "" {
			conf = catalog.ConfidenceUnknown
		}
		confidences = append(confidences, conf)

		if ep.YearFrom != nil && (yearFrom == nil || *ep.YearFrom < *yearFrom) {
			yearFrom = ep.YearFrom
		}
		if ep.YearTo != nil && (yearTo == nil || *ep.YearTo > *yearTo) {
			yearTo = ep.YearTo
		}
		if seen := nonZeroTime(ep.RSSLastSeenAt); seen != nil {
			if latestSeen == nil || seen.After(*latestSeen) {
				latestSeen = seen
			}
		}
	}

	series[seriesID] = catalog.ProgrammaticSeries{
		SeriesID:           seriesID,
		SeriesKey:          seriesKey,
		SeriesKeyRaw:       effectiveKeyRaw,
		TitleFallback:      effectiveKeyRaw,
		GroupingConfidence: catalog.ConfidenceHigh,
		EpisodeIDs:         episodeIDs,
		MemberFingerprints: memberFingerprints,
		Fingerprint:        catalog.SeriesFingerprint(seriesID, memberFingerprints),
		YearFrom:           yearFrom,
		YearTo:             yearTo,
		YearConfidence:     catalog.WeakestConfidence(confidences...),
		Derived: catalog.SeriesDerived{
			EpisodeCount:     len(ordered),
			EpisodeSummaries: summaries,
		},
		RSSLastSeenAt: latestSeen,
	}
}

// applyOverrides reassigns episodes into user-pinned series. Members pulled
// out of an automatic series detach from it; a series emptied by detachment
// is deleted. The override series rebuilds with the standard aggregation.
func (g *Grouper) applyOverrides(series map[string]catalog.ProgrammaticSeries, episodes map[string]*catalog.ProgrammaticEpisode, overrides []Override) {
	for _, override := range overrides {
		target := make(map[string]*catalog.ProgrammaticEpisode)
		var targetOrder []string

		add := func(ep *catalog.ProgrammaticEpisode) {
			if _, ok := target[ep.EpisodeID]; !ok {
				target[ep.EpisodeID] = ep
				targetOrder = append(targetOrder, ep.EpisodeID)
			}
		}

		existing, hasExisting := series[override.SeriesID]
		if hasExisting {
			for _, id := range existing.EpisodeIDs {
				if ep, ok := episodes[id]; ok {
					add(ep)
				}
			}
		}

		for _, id := range override.EpisodeIDs {
			ep, ok := episodes[id]
			if !ok {
				g.logger.Warn("series override names unknown episode",
					slog.String("series_id", override.SeriesID),
					slog.String("episode_id", id))
				continue
			}
			if ep.SeriesID != "" && ep.SeriesID != override.SeriesID {
				g.detachFromSeries(series, ep)
			}
			add(ep)
		}

		if len(targetOrder) == 0 {
			continue
		}

		members := make([]*catalog.ProgrammaticEpisode, 0, len(targetOrder))
		for _, id := range targetOrder {
			members = append(members, target[id])
		}

		keyRaw := override.SeriesKeyRaw
		if keyRaw == "" && hasExisting {
			keyRaw = existing.SeriesKeyRaw
		}
		g.rebuildSeries(series, override.SeriesID, members, keyRaw)
	}
}

func (g *Grouper) detachFromSeries(series map[string]catalog.ProgrammaticSeries, ep *catalog.ProgrammaticEpisode) {
	previous, ok := series[ep.SeriesID]
	if !ok {
		return
	}
	remaining := previous.EpisodeIDs[:0:0]
	for _, id := range previous.EpisodeIDs {
		if id != ep.EpisodeID {
			remaining = append(remaining, id)
		}
	}
	if len(remaining) == 0 {
		delete(series, ep.SeriesID)
		return
	}
	previous.EpisodeIDs = remaining
	series[ep.SeriesID] = previous
}

func (g *Grouper) deriveSeriesKey(title string) *seriesKeyInfo {
	key := titleparse.ParseSeriesKey(title)
	if key == nil {
		return nil
	}
	slugged := g.namer.Slugify(key.Raw)
	if slugged == "" {
		return nil
	}
	return &seriesKeyInfo{raw: key.Raw, normalized: key.Normalized, slug: slugged}
}

func nonZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
