package slug

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	maxSeriesTokens         = 4
	maxEpisodeTokens        = 4
	maxEpisodeKeywordTokens = 2
	handleFallbackIDLength  = 8
)

var (
	leadingNumberRegex       = regexp.MustCompile(`^\s*\d+[\.\)\-:]*\s*`)
	partSuffixMarkerRegex    = regexp.MustCompile(`(?i)\s*\(?(?:part|episode)\s+(\d+)\)?\s*$`)
	trailingPunctuationRegex = regexp.MustCompile(`[\s:\-–—]+$`)
	nonAlphanumericRegex     = regexp.MustCompile(`[^a-z0-9]`)
	nonIDTokenRegex          = regexp.MustCompile(`[^a-z0-9-]`)
)

// Taken tracks every slug already handed out across both namespaces.
type Taken map[string]struct{}

// NewTaken returns an empty taken set.
func NewTaken() Taken { return make(Taken) }

// Has reports whether slug has already been assigned.
func (t Taken) Has(slug string) bool {
	_, ok := t[slug]
	return ok
}

// SeriesInput carries the fields series slug generation reads.
type SeriesInput struct {
	SeriesID    string
	SeriesTitle string
}

// EpisodeInput carries the fields episode slug generation reads.
type EpisodeInput struct {
	EpisodeID  string
	CleanTitle string
	Part       *int
	SeriesID   string
}

// GenerateSeriesSlug slugifies the series title, keeps at most four tokens,
// falls back to tokens of the series id when the title slugifies to nothing,
// and resolves collisions against taken with -2/-3... suffixes. The returned
// slug is recorded in taken.
func (n *Namer) GenerateSeriesSlug(series SeriesInput, taken Taken) string {
	tokens := splitTokens(n.Slugify(series.SeriesTitle))
	if len(tokens) > 0 {
		tokens = tokens[:min(len(tokens), maxSeriesTokens)]
	} else {
		tokens = fallbackTokensFromID(series.SeriesID)
	}

	joined := strings.Join(tokens, "-")
	if joined == "" {
		joined = strings.ToLower(series.SeriesID)
	}
	return resolveSlugConflict(joined, taken)
}

// GenerateEpisodeSlug builds an episode slug from a series handle, up to two
// subtitle keywords, and a ptN marker, within a four-token budget. When the
// budget is full the last keyword is evicted to make room for the part
// marker. seriesSlugs maps series id to its already-assigned slug.
func (n *Namer) GenerateEpisodeSlug(episode EpisodeInput, seriesSlugs map[string]string, taken Taken) string {
	cleaned := stripLeadingNumber(episode.CleanTitle)
	titleWithoutPart, partNumber := extractPartNumber(cleaned)
	subtitleSource := deriveSubtitleSource(titleWithoutPart)

	keywords := takeFirst(splitTokens(n.Slugify(subtitleSource)), maxEpisodeKeywordTokens)
	fallback := takeFirst(splitTokens(n.Slugify(titleWithoutPart)), maxEpisodeKeywordTokens)
	idFallback := nonAlphanumericRegex.ReplaceAllString(strings.ToLower(episode.EpisodeID), "")
	effective := ensureKeywordTokens(keywords, fallback, idFallback)

	var tokens []string
	if episode.SeriesID != "" {
		tokens = append(tokens, n.pickSeriesHandle(seriesSlugs[episode.SeriesID], episode.SeriesID))
	}

	partSlot := 0
	if partNumber != nil {
		partSlot = 1
	}
	slots := maxEpisodeTokens - len(tokens) - partSlot
	tokens = append(tokens, takeFirst(dedupeTokens(tokens, effective), max(slots, 0))...)

	if partNumber != nil {
		if len(tokens) >= maxEpisodeTokens {
			tokens = tokens[:len(tokens)-1]
		}
		tokens = append(tokens, "pt"+strconv.Itoa(*partNumber))
	}

	if len(tokens) == 0 {
		id := strings.ToLower(episode.EpisodeID)
		tokens = append(tokens, id[:min(len(id), 8)])
	}

	return resolveSlugConflict(strings.Join(tokens, "-"), taken)
}

// pickSeriesHandle selects the first series-slug token that is not a generic
// domain topic; failing that, concatenates the first two tokens, then falls
// back to a fragment of the series id.
func (n *Namer) pickSeriesHandle(seriesSlug, seriesID string) string {
	tokens := splitTokens(seriesSlug)
	for _, token := range tokens {
		if _, generic := n.domainTopics[token]; !generic {
			return token
		}
	}
	if len(tokens) >= 2 {
		return tokens[0] + tokens[1]
	}
	if len(tokens) == 1 {
		return tokens[0]
	}
	id := nonAlphanumericRegex.ReplaceAllString(strings.ToLower(seriesID), "")
	if len(id) > handleFallbackIDLength {
		id = id[:handleFallbackIDLength]
	}
	if id == "" {
		return "item"
	}
	return id
}

// stripLeadingNumber removes a leading numeric identifier such as "613. " or
// "42) ".
func stripLeadingNumber(title string) string {
	if title == "" {
		return ""
	}
	return leadingNumberRegex.ReplaceAllString(title, "")
}

// extractPartNumber strips a trailing part/episode marker and returns the
// remaining title plus the parsed part number, or nil when none is present.
func extractPartNumber(title string) (string, *int) {
	if title == "" {
		return "", nil
	}
	loc := partSuffixMarkerRegex.FindStringSubmatchIndex(title)
	if loc == nil {
		return trailingPunctuationRegex.ReplaceAllString(strings.TrimSpace(title), ""), nil
	}
	part, err := strconv.Atoi(title[loc[2]:loc[3]])
	trimmed := trailingPunctuationRegex.ReplaceAllString(strings.TrimSpace(title[:loc[0]]), "")
	if err != nil {
		return trimmed, nil
	}
	return trimmed, &part
}

// deriveSubtitleSource returns the text after the first colon, or the whole
// title when no colon is present.
func deriveSubtitleSource(title string) string {
	if title == "" {
		return ""
	}
	if idx := strings.Index(title, ":"); idx != -1 {
		return strings.TrimSpace(title[idx+1:])
	}
	return strings.TrimSpace(title)
}

func resolveSlugConflict(base string, taken Taken) string {
	candidate := base
	for counter := 2; taken.Has(candidate); counter++ {
		candidate = base + "-" + strconv.Itoa(counter)
	}
	taken[candidate] = struct{}{}
	return candidate
}

func fallbackTokensFromID(id string) []string {
	replaced := nonIDTokenRegex.ReplaceAllString(strings.ToLower(id), "-")
	tokens := splitTokens(replaced)
	return takeFirst(tokens, maxSeriesTokens)
}

func splitTokens(value string) []string {
	var tokens []string
	for _, token := range strings.Split(value, "-") {
		token = strings.TrimSpace(token)
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func takeFirst(tokens []string, limit int) []string {
	if limit < 0 {
		limit = 0
	}
	if len(tokens) <= limit {
		return tokens
	}
	return tokens[:limit]
}

func ensureKeywordTokens(candidates, fallback []string, fallbackID string) []string {
	if len(candidates) > 0 {
		return candidates
	}
	if len(fallback) > 0 {
		return fallback
	}
	return []string{fallbackID[:min(len(fallbackID), 4)]}
}

func dedupeTokens(existing, candidates []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(candidates))
	for _, token := range existing {
		seen[token] = struct{}{}
	}
	var out []string
	for _, token := range candidates {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}
