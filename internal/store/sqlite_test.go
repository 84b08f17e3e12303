package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"seriate/internal/catalog"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "seriate.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpsertRawEpisodesRefreshesLastSeenOnly(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	published := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	episode := catalog.RawEpisode{
		EpisodeID:     "ep-1",
		Title:         "Original Title",
		PublishedAt:   published,
		AudioURL:      "https://cdn.example.com/1.mp3",
		RSSLastSeenAt: published,
		Source:        catalog.SourceMetadata{GUID: "ep-1"},
	}
	if err := db.UpsertRawEpisodes(ctx, []catalog.RawEpisode{episode}); err != nil {
		t.Fatalf("UpsertRawEpisodes: %v", err)
	}

	// A later fetch with a changed title must only move rss_last_seen_at.
	updated := episode
	updated.Title = "Upstream Edit"
	updated.RSSLastSeenAt = published.Add(24 * time.Hour)
	if err := db.UpsertRawEpisodes(ctx, []catalog.RawEpisode{updated}); err != nil {
		t.Fatalf("UpsertRawEpisodes: %v", err)
	}

	var title, lastSeen string
	err := db.db.QueryRowContext(ctx,
		`SELECT title, rss_last_seen_at FROM raw_episodes WHERE episode_id = ?`, "ep-1").
		Scan(&title, &lastSeen)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if title != "Original Title" {
		t.Fatalf("title = %q, want original preserved", title)
	}
	if lastSeen != updated.RSSLastSeenAt.UTC().Format(time.RFC3339Nano) {
		t.Fatalf("rss_last_seen_at = %q", lastSeen)
	}

	count, err := db.RawEpisodeCount(ctx)
	if err != nil {
		t.Fatalf("RawEpisodeCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d", count)
	}
}

func TestRecordRunUpsert(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	started := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if err := db.RecordRun(ctx, Run{ID: "run-1", StartedAt: started, Status: "running"}); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := db.RecordRun(ctx, Run{
		ID:          "run-1",
		StartedAt:   started,
		FinishedAt:  started.Add(time.Minute),
		Status:      "ok",
		NewEpisodes: 3,
		LLMCalls:    2,
	}); err != nil {
		t.Fatalf("RecordRun update: %v", err)
	}

	runs, err := db.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d", len(runs))
	}
	run := runs[0]
	if run.Status != "ok" || run.NewEpisodes != 3 || run.LLMCalls != 2 {
		t.Fatalf("run = %+v", run)
	}
	if run.FinishedAt.IsZero() {
		t.Fatal("finished_at not recorded")
	}
}
