package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"seriate/internal/catalog"
)

// Run is one pipeline execution recorded for history.
type Run struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	Status      string
	NewEpisodes int
	LLMCalls    int
}

// DB mirrors the raw episode layer and run history into SQLite. The JSON
// artifacts stay authoritative; the mirror exists for ad-hoc queries and the
// run log.
type DB struct {
	db   *sql.DB
	path string
}

// OpenDB initializes or connects to the catalog database at path.
func OpenDB(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &DB{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS raw_episodes (
    episode_id        TEXT PRIMARY KEY,
    guid              TEXT NOT NULL,
    title             TEXT NOT NULL,
    published_at      TEXT NOT NULL,
    audio_url         TEXT NOT NULL,
    rss_last_seen_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_raw_episodes_published ON raw_episodes(published_at);

CREATE TABLE IF NOT EXISTS runs (
    run_id       TEXT PRIMARY KEY,
    started_at   TEXT NOT NULL,
    finished_at  TEXT,
    status       TEXT NOT NULL,
    new_episodes INTEGER NOT NULL DEFAULT 0,
    llm_calls    INTEGER NOT NULL DEFAULT 0
);
`
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// UpsertRawEpisodes mirrors raw episodes. Existing rows only refresh
// rss_last_seen_at, matching the append-only contract of the raw layer.
func (d *DB) UpsertRawEpisodes(ctx context.Context, episodes []catalog.RawEpisode) error {
	if len(episodes) == 0 {
		return nil
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO raw_episodes (episode_id, guid, title, published_at, audio_url, rss_last_seen_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(episode_id) DO UPDATE SET rss_last_seen_at = excluded.rss_last_seen_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, episode := range episodes {
		if _, err := stmt.ExecContext(ctx,
			episode.EpisodeID,
			episode.Source.GUID,
			episode.Title,
			episode.PublishedAt.UTC().Format(time.RFC3339Nano),
			episode.AudioURL,
			episode.RSSLastSeenAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("upsert raw episode %s: %w", episode.EpisodeID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// RawEpisodeCount reports the number of mirrored raw episodes.
func (d *DB) RawEpisodeCount(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_episodes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count raw episodes: %w", err)
	}
	return count, nil
}

// RecordRun inserts or finalizes a run history row.
func (d *DB) RecordRun(ctx context.Context, run Run) error {
	var finishedAt any
	if !run.FinishedAt.IsZero() {
		finishedAt = run.FinishedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := d.db.ExecContext(ctx, `
INSERT INTO runs (run_id, started_at, finished_at, status, new_episodes, llm_calls)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET
    finished_at = excluded.finished_at,
    status = excluded.status,
    new_episodes = excluded.new_episodes,
    llm_calls = excluded.llm_calls`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		finishedAt,
		run.Status,
		run.NewEpisodes,
		run.LLMCalls,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (d *DB) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.QueryContext(ctx, `
SELECT run_id, started_at, COALESCE(finished_at, ''), status, new_episodes, llm_calls
FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			startedAt  string
			finishedAt string
		)
		if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &run.Status, &run.NewEpisodes, &run.LLMCalls); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("parse run started_at: %w", err)
		}
		if finishedAt != "" {
			if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
				return nil, fmt.Errorf("parse run finished_at: %w", err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
