package catalog

import "time"

// SourceMetadata preserves the feed-level identifiers an episode arrived with.
type SourceMetadata struct {
	GUID          string `json:"guid"`
	ItunesEpisode *int   `json:"itunesEpisode"`
	PlatformID    string `json:"platformId,omitempty"`
	EnclosureURL  string `json:"enclosureUrl"`
}

// RawEpisode is one feed entry exactly as ingested. Records are append-only
// and keyed by EpisodeID; only RSSLastSeenAt is refreshed on later fetches.
type RawEpisode struct {
	EpisodeID     string         `json:"episodeId"`
	Title         string         `json:"title"`
	PublishedAt   time.Time      `json:"publishedAt"`
	Description   string         `json:"description"`
	AudioURL      string         `json:"audioUrl"`
	RSSLastSeenAt time.Time      `json:"rssLastSeenAt"`
	Source        SourceMetadata `json:"source"`
}

// ProgrammaticEpisode is the derived view of a raw episode after text
// cleaning, CSV joining, and series grouping. Rebuilt every run.
type ProgrammaticEpisode struct {
	EpisodeID          string     `json:"episodeId"`
	CleanTitle         string     `json:"cleanTitle"`
	CleanDescription   string     `json:"cleanDescription"`
	Fingerprint        string     `json:"fingerprint"`
	PublishedAt        time.Time  `json:"publishedAt"`
	RSSLastSeenAt      time.Time  `json:"rssLastSeenAt"`
	ItunesEpisode      *int       `json:"itunesEpisode"`
	Part               *int       `json:"part"`
	SeriesID           string     `json:"seriesId,omitempty"`
	SeriesKey          string     `json:"seriesKey,omitempty"`
	SeriesKeyRaw       string     `json:"seriesKeyRaw,omitempty"`
	GroupingConfidence Confidence `json:"seriesGroupingConfidence"`
	SubjectTags        []string   `json:"subjectTags,omitempty"`
	YearFrom           *int       `json:"yearFrom"`
	YearTo             *int       `json:"yearTo"`
	YearConfidence     Confidence `json:"yearConfidence"`
}

// EpisodeSummary is the per-member digest fed to series-level LLM prompts.
type EpisodeSummary struct {
	Part             *int   `json:"part"`
	CleanTitle       string `json:"cleanTitle"`
	CleanDescription string `json:"cleanDescription"`
}

// SeriesDerived carries aggregates computed from series membership.
type SeriesDerived struct {
	EpisodeCount     int              `json:"episodeCount"`
	EpisodeSummaries []EpisodeSummary `json:"episodeSummaries"`
	SubjectTags      []string         `json:"subjectTags,omitempty"`
}

// ProgrammaticSeries is one grouping result. The SeriesID is deterministic:
// "<series-key-slug>-<YYYYMMDD>" of the first member's publish date.
type ProgrammaticSeries struct {
	SeriesID           string        `json:"seriesId"`
	SeriesKey          string        `json:"seriesKey,omitempty"`
	SeriesKeyRaw       string        `json:"seriesKeyRaw,omitempty"`
	TitleFallback      string        `json:"seriesTitleFallback"`
	GroupingConfidence Confidence    `json:"seriesGroupingConfidence"`
	EpisodeIDs         []string      `json:"episodeIds"`
	MemberFingerprints []string      `json:"memberEpisodeFingerprints"`
	Fingerprint        string        `json:"fingerprint"`
	YearFrom           *int          `json:"yearFrom"`
	YearTo             *int          `json:"yearTo"`
	YearConfidence     Confidence    `json:"yearConfidence"`
	Derived            SeriesDerived `json:"derived"`
	RSSLastSeenAt      *time.Time    `json:"rssLastSeenAt"`
}

// CacheStatus reports how an enrichment attempt concluded.
type CacheStatus string

const (
	CacheStatusOK CacheStatus = "ok"
	// CacheStatusSkipped appears in older cache files; nothing writes it
	// today, but loads must still accept it.
	CacheStatusSkipped CacheStatus = "skipped"
	CacheStatusError   CacheStatus = "error"
)

// EpisodeCacheEntry is a content-addressed LLM result for one episode,
// keyed by "<episodeId>:<fingerprint>". An entry whose fingerprint no longer
// matches the episode's current fingerprint is stale.
type EpisodeCacheEntry struct {
	EpisodeID      string      `json:"episodeId"`
	Fingerprint    string      `json:"fingerprint"`
	Model          string      `json:"model"`
	PromptVersion  string      `json:"promptVersion"`
	CreatedAt      time.Time   `json:"createdAt"`
	Status         CacheStatus `json:"status"`
	Notes          string      `json:"notes,omitempty"`
	KeyPeople      []string    `json:"keyPeople"`
	KeyPlaces      []string    `json:"keyPlaces"`
	KeyThemes      []string    `json:"keyThemes"`
	YearFrom       *int        `json:"yearFrom"`
	YearTo         *int        `json:"yearTo"`
	YearConfidence Confidence  `json:"yearConfidence"`
}

// SeriesCacheEntry is the series-level counterpart of EpisodeCacheEntry.
type SeriesCacheEntry struct {
	SeriesID         string      `json:"seriesId"`
	Fingerprint      string      `json:"fingerprint"`
	Model            string      `json:"model"`
	PromptVersion    string      `json:"promptVersion"`
	CreatedAt        time.Time   `json:"createdAt"`
	Status           CacheStatus `json:"status"`
	Notes            string      `json:"notes,omitempty"`
	SeriesTitle      string      `json:"seriesTitle,omitempty"`
	NarrativeSummary string      `json:"narrativeSummary,omitempty"`
	TonalDescriptors []string    `json:"tonalDescriptors,omitempty"`
	YearFrom         *int        `json:"yearFrom"`
	YearTo           *int        `json:"yearTo"`
	YearConfidence   Confidence  `json:"yearConfidence"`
}

// CacheKey builds the content-addressed cache key for an entity.
func CacheKey(id, fingerprint string) string {
	return id + ":" + fingerprint
}

// PublicEpisode is the published, fully merged episode record.
type PublicEpisode struct {
	EpisodeID          string     `json:"episodeId"`
	Slug               string     `json:"slug"`
	Title              string     `json:"title"`
	PublishedAt        time.Time  `json:"publishedAt"`
	Description        string     `json:"description"`
	AudioURL           string     `json:"audioUrl"`
	RSSLastSeenAt      time.Time  `json:"rssLastSeenAt"`
	ItunesEpisode      *int       `json:"itunesEpisode"`
	CleanTitle         string     `json:"cleanTitle"`
	CleanDescription   string     `json:"cleanDescription"`
	Fingerprint        string     `json:"fingerprint"`
	Part               *int       `json:"part"`
	SeriesID           string     `json:"seriesId,omitempty"`
	SeriesKey          string     `json:"seriesKey,omitempty"`
	SeriesKeyRaw       string     `json:"seriesKeyRaw,omitempty"`
	GroupingConfidence Confidence `json:"seriesGroupingConfidence"`
	SubjectTags        []string   `json:"subjectTags,omitempty"`
	KeyPeople          []string   `json:"keyPeople"`
	KeyPlaces          []string   `json:"keyPlaces"`
	KeyThemes          []string   `json:"keyThemes"`
	YearFrom           *int       `json:"yearFrom"`
	YearTo             *int       `json:"yearTo"`
	YearConfidence     Confidence `json:"yearConfidence"`
}

// PublicSeries is the published, fully merged series record.
type PublicSeries struct {
	SeriesID           string        `json:"seriesId"`
	Slug               string        `json:"slug"`
	SeriesTitle        string        `json:"seriesTitle"`
	NarrativeSummary   string        `json:"narrativeSummary,omitempty"`
	TonalDescriptors   []string      `json:"tonalDescriptors,omitempty"`
	SeriesKey          string        `json:"seriesKey,omitempty"`
	SeriesKeyRaw       string        `json:"seriesKeyRaw,omitempty"`
	GroupingConfidence Confidence    `json:"seriesGroupingConfidence"`
	EpisodeIDs         []string      `json:"episodeIds"`
	MemberFingerprints []string      `json:"memberEpisodeFingerprints"`
	Fingerprint        string        `json:"fingerprint"`
	YearFrom           *int          `json:"yearFrom"`
	YearTo             *int          `json:"yearTo"`
	YearConfidence     Confidence    `json:"yearConfidence"`
	Derived            SeriesDerived `json:"derived"`
	RSSLastSeenAt      *time.Time    `json:"rssLastSeenAt"`
}

// SlugRef resolves a slug back to the record that owns it.
type SlugRef struct {
	Type SlugType `json:"type"`
	ID   string   `json:"id"`
}

// SlugType discriminates the two slug namespaces sharing one taken set.
type SlugType string

const (
	SlugTypeEpisode SlugType = "episode"
	SlugTypeSeries  SlugType = "series"
)

// Int returns a pointer to v. Convenience for optional numeric fields.
func Int(v int) *int { return &v }
