package slug

// defaultStopWords are tokens dropped from every slug. Articles, common
// prepositions, and conjunctions carry no routing value.
var defaultStopWords = []string{
	"a", "an", "and", "as", "at", "but", "by", "for", "from",
	"in", "into", "is", "it", "nor", "of", "off", "on", "or",
	"over", "so", "the", "to", "up", "with", "yet",
}

// defaultDomainTopics are catalog-wide theme tokens too generic to serve as a
// series handle inside episode slugs. A handle should distinguish the series,
// and half the catalog mentions wars, empires, or kings.
var defaultDomainTopics = []string{
	"age", "ancient", "battle", "century", "early", "empire",
	"fall", "great", "history", "kings", "life", "medieval",
	"modern", "queens", "revolution", "rise", "story",
	"war", "wars", "world", "years",
}

func buildSet(base, extra []string) map[string]struct{} {
	set := make(map[string]struct{}, len(base)+len(extra))
	for _, w := range base {
		set[w] = struct{}{}
	}
	for _, w := range extra {
		set[w] = struct{}{}
	}
	return set
}
