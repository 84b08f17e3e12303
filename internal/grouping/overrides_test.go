package grouping

import (
	"os"
	"path/filepath"
	"testing"

	"seriate/internal/logging"
)

func writeOverridesFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "series_overrides.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write overrides: %v", err)
	}
	return path
}

func TestCatalogParsesArrayForm(t *testing.T) {
	path := writeOverridesFile(t, `[{"seriesId":"rome-custom","episodeIds":[" ep-1 ","ep-2"]}]`)
	catalog := NewCatalog(path, logging.NewNop())

	entries, err := catalog.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %v", entries)
	}
	if entries[0].SeriesID != "rome-custom" {
		t.Fatalf("series id = %q", entries[0].SeriesID)
	}
	if len(entries[0].EpisodeIDs) != 2 || entries[0].EpisodeIDs[0] != "ep-1" {
		t.Fatalf("episode ids = %v", entries[0].EpisodeIDs)
	}
}

func TestCatalogParsesWrapperFormWithBOM(t *testing.T) {
	path := writeOverridesFile(t, "\xef\xbb\xbf"+`{"overrides":[{"seriesId":"s1","episodeIds":["e1"],"seriesKeyRaw":" Key "}]}`)
	catalog := NewCatalog(path, logging.NewNop())

	entries, err := catalog.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 || entries[0].SeriesKeyRaw != "Key" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestCatalogSkipsIncompleteEntries(t *testing.T) {
	path := writeOverridesFile(t, `[{"seriesId":"","episodeIds":["e1"]},{"seriesId":"s2","episodeIds":[]}]`)
	catalog := NewCatalog(path, logging.NewNop())

	entries, err := catalog.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected incomplete entries dropped, got %+v", entries)
	}
}

func TestCatalogMissingFileYieldsNoOverrides(t *testing.T) {
	catalog := NewCatalog(filepath.Join(t.TempDir(), "absent.json"), logging.NewNop())
	entries, err := catalog.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if entries != nil {
		t.Fatalf("entries = %v", entries)
	}
}

func TestNilCatalog(t *testing.T) {
	var catalog *Catalog
	entries, err := catalog.Entries()
	if err != nil || entries != nil {
		t.Fatalf("nil catalog: entries=%v err=%v", entries, err)
	}
}
