package slug

import (
	"sort"

	"seriate/internal/catalog"
)

// Assignment is the result of one full slug assignment pass.
type Assignment struct {
	// SeriesSlugs maps series id to assigned slug.
	SeriesSlugs map[string]string
	// EpisodeSlugs maps episode id to assigned slug.
	EpisodeSlugs map[string]string
	// Registry maps every assigned slug back to its owner.
	Registry map[string]catalog.SlugRef
}

// Assign hands out slugs deterministically: all series first, then all
// episodes, each group in lexicographic id order, drawing from one shared
// taken set. Re-running over the same inputs reproduces the same slugs
// byte for byte.
func (n *Namer) Assign(series []SeriesInput, episodes []EpisodeInput) Assignment {
	taken := NewTaken()
	out := Assignment{
		SeriesSlugs:  make(map[string]string, len(series)),
		EpisodeSlugs: make(map[string]string, len(episodes)),
		Registry:     make(map[string]catalog.SlugRef, len(series)+len(episodes)),
	}

	orderedSeries := append([]SeriesInput(nil), series...)
	sort.Slice(orderedSeries, func(i, j int) bool {
		return orderedSeries[i].SeriesID < orderedSeries[j].SeriesID
	})
	for _, s := range orderedSeries {
		assigned := n.GenerateSeriesSlug(s, taken)
		out.SeriesSlugs[s.SeriesID] = assigned
		out.Registry[assigned] = catalog.SlugRef{Type: catalog.SlugTypeSeries, ID: s.SeriesID}
	}

	orderedEpisodes := append([]EpisodeInput(nil), episodes...)
	sort.Slice(orderedEpisodes, func(i, j int) bool {
		return orderedEpisodes[i].EpisodeID < orderedEpisodes[j].EpisodeID
	})
	for _, e := range orderedEpisodes {
		assigned := n.GenerateEpisodeSlug(e, out.SeriesSlugs, taken)
		out.EpisodeSlugs[e.EpisodeID] = assigned
		out.Registry[assigned] = catalog.SlugRef{Type: catalog.SlugTypeEpisode, ID: e.EpisodeID}
	}

	return out
}
