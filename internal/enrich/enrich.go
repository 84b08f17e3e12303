package enrich

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"seriate/internal/catalog"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// CleanTitle normalizes a feed title: markup is stripped, HTML entities are
// decoded, and whitespace is collapsed.
func CleanTitle(raw string) string {
	return collapseWhitespace(stripMarkup(raw))
}

// CleanDescription reduces an HTML episode description to plain text.
func CleanDescription(raw string) string {
	return collapseWhitespace(stripMarkup(raw))
}

// BuildEpisodes derives programmatic episodes from raw records. Year fields
// start empty; grouping and LLM enrichment fill them in later.
func BuildEpisodes(raw []catalog.RawEpisode) map[string]*catalog.ProgrammaticEpisode {
	out := make(map[string]*catalog.ProgrammaticEpisode, len(raw))
	for _, episode := range raw {
		cleanTitle := CleanTitle(episode.Title)
		cleanDescription := CleanDescription(episode.Description)
		out[episode.EpisodeID] = &catalog.ProgrammaticEpisode{
			EpisodeID:          episode.EpisodeID,
			CleanTitle:         cleanTitle,
			CleanDescription:   cleanDescription,
			Fingerprint:        catalog.EpisodeFingerprint(cleanTitle, cleanDescription),
			PublishedAt:        episode.PublishedAt,
			RSSLastSeenAt:      episode.RSSLastSeenAt,
			ItunesEpisode:      episode.Source.ItunesEpisode,
			GroupingConfidence: catalog.ConfidenceLow,
			YearConfidence:     catalog.ConfidenceUnknown,
		}
	}
	return out
}

// stripMarkup walks the HTML token stream and keeps only text content.
// Script and style bodies are dropped entirely. Block-ish boundaries become
// spaces so adjacent paragraphs do not fuse into one word.
func stripMarkup(input string) string {
	if input == "" {
		return ""
	}
	if !strings.ContainsAny(input, "<&") {
		return input
	}

	tokenizer := html.NewTokenizer(strings.NewReader(input))
	var b strings.Builder
	skipDepth := 0
	for {
		tokenType := tokenizer.Next()
		switch tokenType {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if isSkippedTag(string(name)) {
				skipDepth++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if isSkippedTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}

func isSkippedTag(name string) bool {
	return name == "script" || name == "style"
}

func collapseWhitespace(value string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(value, " "))
}
