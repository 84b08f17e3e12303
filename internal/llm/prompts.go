package llm

import (
	"encoding/json"
	"strings"

	"seriate/internal/catalog"
)

// Prompt versions participate in cache entries so a prompt change can be
// told apart from a content change when auditing the cache.
const (
	EpisodePromptVersion = "episode.enrichment.v2"
	SeriesPromptVersion  = "series.enrichment.v1"
)

const episodeSystemPrompt = "You are an expert historical analyst specializing in a long-running " +
	"narrative history podcast. Your task is to extract specific structured metadata from an " +
	"episode's title and synopsis. You must adhere strictly to the output format."

const seriesSystemPrompt = "You are a skilled editor tasked with creating a compelling title and " +
	"summary for a multi-part podcast series based on the titles and synopses of its individual episodes."

// buildEpisodeUserPrompt renders the enrichment request for one episode.
func buildEpisodeUserPrompt(episode *catalog.ProgrammaticEpisode) string {
	lines := []string{
		"Analyze the following podcast episode details:",
		"Title: " + episode.CleanTitle,
		"Synopsis: " + episode.CleanDescription,
		"From the text provided, perform the following tasks:",
		"1. Identify key historical figures mentioned. Do NOT include the podcast hosts. Do NOT include producer or staff names mentioned in a credits list.",
		"2. Identify key geographical places or locations central to the narrative.",
		"3. Infer a numeric year span (yearFrom, yearTo) for the main historical period discussed. If the episode covers multiple distinct periods or no specific historical period (e.g., mythology, ghosts), you MUST return `null` for both yearFrom and yearTo.",
		"4. Extract up to five short, key themes that summarize the episode's subject matter.",
		"Return your analysis ONLY as a single, valid JSON object with the following schema:",
		"{",
		`  "keyPeople": ["string"],`,
		`  "keyPlaces": ["string"],`,
		`  "keyThemes": ["string"],`,
		`  "yearFrom": number | null,`,
		`  "yearTo": number | null`,
		"}",
		"Example:",
		"Title: 612. Nelson: The Final Showdown (Part 5)",
		`Synopsis: "After two years at sea chasing the combined fleet of France and Spain, what was Nelson's next step? Join the hosts as they discuss the build up to one of the most totemic naval clashes of all time - Trafalgar."`,
		"Expected Output:",
		"{",
		`  "keyPeople": ["Horatio Nelson", "Napoleon Bonaparte"],`,
		`  "keyPlaces": ["Britain", "France", "Spain", "Trafalgar"],`,
		`  "keyThemes": ["Napoleonic Wars", "Naval Warfare", "British Navy", "Trafalgar Campaign"],`,
		`  "yearFrom": 1803,`,
		`  "yearTo": 1805`,
		"}",
		"If a span cannot be determined, both `yearFrom` and `yearTo` must be returned as `null`:",
		"{",
		`  "keyPeople": ["Perseus", "Medusa"],`,
		`  "keyPlaces": ["Ancient Greece"],`,
		`  "keyThemes": ["mythology", "heroic-quests", "monsters"],`,
		`  "yearFrom": null,`,
		`  "yearTo": null`,
		"}",
	}
	return strings.Join(lines, "\n")
}

// buildSeriesUserPrompt renders the enrichment request for one series from
// its member episode summaries.
func buildSeriesUserPrompt(series catalog.ProgrammaticSeries) string {
	summaries, err := json.MarshalIndent(series.Derived.EpisodeSummaries, "", "  ")
	if err != nil {
		summaries = []byte("[]")
	}
	lines := []string{
		"Analyze the following collection of podcast episodes, which belong to a single series:",
		"JSON",
		string(summaries),
		"Based on the provided episodes, generate a single, consolidated `seriesTitle` and a short `narrativeSummary` (2-3 sentences) for the entire series. The title should be a human-friendly, overarching name for the arc, derived from the common themes in the episode titles.",
		"Return your analysis ONLY as a single, valid JSON object with the following schema:",
		"{",
		`  "seriesTitle": "string",`,
		`  "narrativeSummary": "string"`,
		"}",
	}
	return strings.Join(lines, "\n")
}
