package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"seriate/internal/catalog"
	"seriate/internal/logging"
)

// Artifact file names under the data directory.
const (
	RawEpisodesFile          = "raw_episodes.json"
	ProgrammaticEpisodesFile = "programmatic_episodes.json"
	ProgrammaticSeriesFile   = "programmatic_series.json"
	EpisodeCacheFile         = "llm_episode_cache.json"
	SeriesCacheFile          = "llm_series_cache.json"
	PublicDir                = "public"
	PublicEpisodesFile       = "episodes.json"
	PublicSeriesFile         = "series.json"
	SlugRegistryFile         = "slug_registry.json"
	LedgerFile               = "errors.jsonl"
)

// Artifacts reads and writes the JSON artifact set rooted at a data
// directory. Missing files load as empty collections so a first run needs no
// scaffolding.
type Artifacts struct {
	dataDir string
	logger  *slog.Logger
}

// NewArtifacts constructs an artifact store rooted at dataDir.
func NewArtifacts(dataDir string, logger *slog.Logger) *Artifacts {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Artifacts{dataDir: dataDir, logger: logging.NewComponentLogger(logger, "store")}
}

// DataDir reports the root the artifacts live under.
func (a *Artifacts) DataDir() string { return a.dataDir }

func (a *Artifacts) path(name string) string {
	return filepath.Join(a.dataDir, name)
}

func (a *Artifacts) publicPath(name string) string {
	return filepath.Join(a.dataDir, PublicDir, name)
}

// LoadRawEpisodes reads the append-only raw layer.
func (a *Artifacts) LoadRawEpisodes() ([]catalog.RawEpisode, error) {
	var episodes []catalog.RawEpisode
	if err := a.readJSON(a.path(RawEpisodesFile), &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}

// SaveRawEpisodes writes the raw layer sorted by (publishedAt, episodeId).
func (a *Artifacts) SaveRawEpisodes(episodes []catalog.RawEpisode) error {
	sorted := append([]catalog.RawEpisode(nil), episodes...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].PublishedAt.Equal(sorted[j].PublishedAt) {
			return sorted[i].PublishedAt.Before(sorted[j].PublishedAt)
		}
		return sorted[i].EpisodeID < sorted[j].EpisodeID
	})
	return a.writeJSON(a.path(RawEpisodesFile), sorted)
}

// LoadEpisodes reads the programmatic episode layer.
func (a *Artifacts) LoadEpisodes() (map[string]*catalog.ProgrammaticEpisode, error) {
	episodes := make(map[string]*catalog.ProgrammaticEpisode)
	if err := a.readJSON(a.path(ProgrammaticEpisodesFile), &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}

// SaveEpisodes writes the programmatic episode layer keyed by episode id.
func (a *Artifacts) SaveEpisodes(episodes map[string]*catalog.ProgrammaticEpisode) error {
	return a.writeJSON(a.path(ProgrammaticEpisodesFile), episodes)
}

// LoadSeries reads the programmatic series layer.
func (a *Artifacts) LoadSeries() (map[string]catalog.ProgrammaticSeries, error) {
	series := make(map[string]catalog.ProgrammaticSeries)
	if err := a.readJSON(a.path(ProgrammaticSeriesFile), &series); err != nil {
		return nil, err
	}
	return series, nil
}

// SaveSeries writes the programmatic series layer keyed by series id.
func (a *Artifacts) SaveSeries(series map[string]catalog.ProgrammaticSeries) error {
	return a.writeJSON(a.path(ProgrammaticSeriesFile), series)
}

// LoadEpisodeCache reads the episode enrichment cache.
func (a *Artifacts) LoadEpisodeCache() (map[string]catalog.EpisodeCacheEntry, error) {
	cache := make(map[string]catalog.EpisodeCacheEntry)
	if err := a.readJSON(a.path(EpisodeCacheFile), &cache); err != nil {
		return nil, err
	}
	return cache, nil
}

// SaveEpisodeCache writes the episode enrichment cache.
func (a *Artifacts) SaveEpisodeCache(cache map[string]catalog.EpisodeCacheEntry) error {
	return a.writeJSON(a.path(EpisodeCacheFile), cache)
}

// LoadSeriesCache reads the series enrichment cache.
func (a *Artifacts) LoadSeriesCache() (map[string]catalog.SeriesCacheEntry, error) {
	cache := make(map[string]catalog.SeriesCacheEntry)
	if err := a.readJSON(a.path(SeriesCacheFile), &cache); err != nil {
		return nil, err
	}
	return cache, nil
}

// SaveSeriesCache writes the series enrichment cache.
func (a *Artifacts) SaveSeriesCache(cache map[string]catalog.SeriesCacheEntry) error {
	return a.writeJSON(a.path(SeriesCacheFile), cache)
}

// LoadPublicEpisodes reads the published episode records.
func (a *Artifacts) LoadPublicEpisodes() ([]catalog.PublicEpisode, error) {
	var episodes []catalog.PublicEpisode
	if err := a.readJSON(a.publicPath(PublicEpisodesFile), &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}

// SavePublicEpisodes writes the published episode records in the order the
// composer produced them.
func (a *Artifacts) SavePublicEpisodes(episodes []catalog.PublicEpisode) error {
	return a.writeJSON(a.publicPath(PublicEpisodesFile), episodes)
}

// LoadPublicSeries reads the published series records.
func (a *Artifacts) LoadPublicSeries() ([]catalog.PublicSeries, error) {
	var series []catalog.PublicSeries
	if err := a.readJSON(a.publicPath(PublicSeriesFile), &series); err != nil {
		return nil, err
	}
	return series, nil
}

// SavePublicSeries writes the published series records.
func (a *Artifacts) SavePublicSeries(series []catalog.PublicSeries) error {
	return a.writeJSON(a.publicPath(PublicSeriesFile), series)
}

// LoadSlugRegistry reads the slug registry.
func (a *Artifacts) LoadSlugRegistry() (map[string]catalog.SlugRef, error) {
	registry := make(map[string]catalog.SlugRef)
	if err := a.readJSON(a.publicPath(SlugRegistryFile), &registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// SaveSlugRegistry writes the slug registry keyed by slug.
func (a *Artifacts) SaveSlugRegistry(registry map[string]catalog.SlugRef) error {
	return a.writeJSON(a.publicPath(SlugRegistryFile), registry)
}

// readJSON loads path into target. A missing or empty file leaves the target
// untouched.
func (a *Artifacts) readJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON writes value to path atomically: indent-formatted UTF-8 with a
// trailing newline, staged in a temp file and renamed into place. Map keys
// marshal in sorted order, keeping output deterministic.
func (a *Artifacts) writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	a.logger.Debug("artifact written",
		logging.String(logging.FieldPath, path),
		logging.Int("bytes", len(data)))
	return nil
}
