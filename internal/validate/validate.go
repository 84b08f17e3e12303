// Package validate checks the composed catalog before anything is written.
// It verifies referential integrity across the artifact layers and conforms
// every public record and cache entry to an embedded JSON Schema.
package validate

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"seriate/internal/catalog"
	"seriate/internal/services"
)

//go:embed schema/public_episode.schema.json
var episodeSchemaJSON []byte

//go:embed schema/public_series.schema.json
var seriesSchemaJSON []byte

//go:embed schema/cache_entry.schema.json
var cacheSchemaJSON []byte

// Policy selects how violations surface.
type Policy int

const (
	// FailFast aborts on the first violation. The pipeline uses this so a
	// broken build never replaces good artifacts.
	FailFast Policy = iota
	// CollectAll gathers every violation for reporting. The audit command
	// uses this.
	CollectAll
)

// Violation is one failed check.
type Violation struct {
	Rule    string
	ItemID  string
	Message string
}

func (v Violation) String() string {
	if v.ItemID == "" {
		return v.Rule + ": " + v.Message
	}
	return v.Rule + " [" + v.ItemID + "]: " + v.Message
}

// Input carries every layer the validator cross-checks.
type Input struct {
	RawEpisodes    []catalog.RawEpisode
	Episodes       map[string]*catalog.ProgrammaticEpisode
	PublicEpisodes []catalog.PublicEpisode
	PublicSeries   []catalog.PublicSeries
	EpisodeCache   map[string]catalog.EpisodeCacheEntry
	SeriesCache    map[string]catalog.SeriesCacheEntry
	Registry       map[string]catalog.SlugRef
}

// Validator holds the compiled record schemas.
type Validator struct {
	episodeSchema *jsonschema.Schema
	seriesSchema  *jsonschema.Schema
	cacheSchema   *jsonschema.Schema
}

// New compiles the embedded schemas.
func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	schemas := make(map[string]*jsonschema.Schema, 3)
	for name, raw := range map[string][]byte{
		"public_episode.schema.json": episodeSchemaJSON,
		"public_series.schema.json":  seriesSchemaJSON,
		"cache_entry.schema.json":    cacheSchemaJSON,
	} {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "validate", "parse schema", name, err)
		}
		if err := compiler.AddResource(name, doc); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "validate", "add schema", name, err)
		}
		schema, err := compiler.Compile(name)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "validate", "compile schema", name, err)
		}
		schemas[name] = schema
	}
	return &Validator{
		episodeSchema: schemas["public_episode.schema.json"],
		seriesSchema:  schemas["public_series.schema.json"],
		cacheSchema:   schemas["cache_entry.schema.json"],
	}, nil
}

// Run executes every check. Under FailFast the first violation comes back as
// an error; under CollectAll every violation is returned and the error is
// nil unless validation itself could not run.
func (v *Validator) Run(in Input, policy Policy) ([]Violation, error) {
	violations := v.check(in)
	if policy == FailFast && len(violations) > 0 {
		first := violations[0]
		return violations[:1], services.Wrap(services.ErrValidation, "validate", first.Rule, first.String(), nil)
	}
	return violations, nil
}

func (v *Validator) check(in Input) []Violation {
	var violations []Violation
	add := func(rule, itemID, format string, args ...any) {
		violations = append(violations, Violation{Rule: rule, ItemID: itemID, Message: fmt.Sprintf(format, args...)})
	}

	rawIDs := make(map[string]struct{}, len(in.RawEpisodes))
	for _, raw := range in.RawEpisodes {
		if _, dup := rawIDs[raw.EpisodeID]; dup {
			add("raw-id-unique", raw.EpisodeID, "duplicate raw episode id")
		}
		rawIDs[raw.EpisodeID] = struct{}{}
	}

	publicIDs := make(map[string]struct{}, len(in.PublicEpisodes))
	slugOwners := make(map[string]string)
	seriesByID := make(map[string]catalog.PublicSeries, len(in.PublicSeries))
	for _, series := range in.PublicSeries {
		seriesByID[series.SeriesID] = series
	}

	for _, episode := range in.PublicEpisodes {
		if _, dup := publicIDs[episode.EpisodeID]; dup {
			add("episode-id-unique", episode.EpisodeID, "duplicate public episode id")
		}
		publicIDs[episode.EpisodeID] = struct{}{}

		if episode.Slug == "" {
			add("slug-present", episode.EpisodeID, "public episode has no slug")
		} else if owner, taken := slugOwners[episode.Slug]; taken {
			add("slug-unique", episode.EpisodeID, "slug %q already owned by %s", episode.Slug, owner)
		} else {
			slugOwners[episode.Slug] = "episode " + episode.EpisodeID
		}

		if _, ok := rawIDs[episode.EpisodeID]; !ok {
			add("episode-raw-exists", episode.EpisodeID, "no raw episode backs this public episode")
		}
		if _, ok := in.Episodes[episode.EpisodeID]; !ok {
			add("episode-programmatic-exists", episode.EpisodeID, "no programmatic episode backs this public episode")
		}

		if episode.SeriesID != "" {
			series, ok := seriesByID[episode.SeriesID]
			if !ok {
				add("episode-series-exists", episode.EpisodeID, "references missing series %q", episode.SeriesID)
			} else if !containsString(series.EpisodeIDs, episode.EpisodeID) {
				add("series-membership", episode.EpisodeID, "series %q does not list this episode", episode.SeriesID)
			}
		}

		if episode.YearFrom != nil && episode.YearTo != nil && *episode.YearFrom > *episode.YearTo {
			add("year-order", episode.EpisodeID, "yearFrom %d exceeds yearTo %d", *episode.YearFrom, *episode.YearTo)
		}
		if err := v.conforms(v.episodeSchema, episode); err != nil {
			add("episode-schema", episode.EpisodeID, "%v", err)
		}
	}

	for _, series := range in.PublicSeries {
		if series.Slug == "" {
			add("slug-present", series.SeriesID, "public series has no slug")
		} else if owner, taken := slugOwners[series.Slug]; taken {
			add("slug-unique", series.SeriesID, "slug %q already owned by %s", series.Slug, owner)
		} else {
			slugOwners[series.Slug] = "series " + series.SeriesID
		}

		for _, episodeID := range series.EpisodeIDs {
			if _, ok := publicIDs[episodeID]; !ok {
				add("series-member-exists", series.SeriesID, "lists unknown episode %q", episodeID)
			}
		}
		if series.YearFrom != nil && series.YearTo != nil && *series.YearFrom > *series.YearTo {
			add("year-order", series.SeriesID, "yearFrom %d exceeds yearTo %d", *series.YearFrom, *series.YearTo)
		}
		if err := v.conforms(v.seriesSchema, series); err != nil {
			add("series-schema", series.SeriesID, "%v", err)
		}
	}

	for key, entry := range in.EpisodeCache {
		if expected := catalog.CacheKey(entry.EpisodeID, entry.Fingerprint); key != expected {
			add("cache-key", key, "episode cache key does not match entry (%q)", expected)
		}
		if err := v.conforms(v.cacheSchema, entry); err != nil {
			add("cache-schema", key, "%v", err)
		}
	}
	for key, entry := range in.SeriesCache {
		if expected := catalog.CacheKey(entry.SeriesID, entry.Fingerprint); key != expected {
			add("cache-key", key, "series cache key does not match entry (%q)", expected)
		}
		if err := v.conforms(v.cacheSchema, entry); err != nil {
			add("cache-schema", key, "%v", err)
		}
	}

	if in.Registry != nil {
		for slug, ref := range in.Registry {
			switch ref.Type {
			case catalog.SlugTypeEpisode:
				if _, ok := publicIDs[ref.ID]; !ok {
					add("registry-ref", slug, "registered episode %q does not exist", ref.ID)
				}
			case catalog.SlugTypeSeries:
				if _, ok := seriesByID[ref.ID]; !ok {
					add("registry-ref", slug, "registered series %q does not exist", ref.ID)
				}
			default:
				add("registry-ref", slug, "unknown slug type %q", ref.Type)
			}
		}
		for _, episode := range in.PublicEpisodes {
			if episode.Slug == "" {
				continue
			}
			if ref, ok := in.Registry[episode.Slug]; !ok || ref.Type != catalog.SlugTypeEpisode || ref.ID != episode.EpisodeID {
				add("registry-complete", episode.EpisodeID, "slug %q not registered to this episode", episode.Slug)
			}
		}
		for _, series := range in.PublicSeries {
			if series.Slug == "" {
				continue
			}
			if ref, ok := in.Registry[series.Slug]; !ok || ref.Type != catalog.SlugTypeSeries || ref.ID != series.SeriesID {
				add("registry-complete", series.SeriesID, "slug %q not registered to this series", series.Slug)
			}
		}
	}

	return violations
}

// conforms round-trips the record through JSON so the schema sees exactly
// what would be persisted.
func (v *Validator) conforms(schema *jsonschema.Schema, record any) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	return schema.Validate(instance)
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
