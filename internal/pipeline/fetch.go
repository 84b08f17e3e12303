package pipeline

import (
	"context"
	"time"

	"seriate/internal/catalog"
	"seriate/internal/logging"
	"seriate/internal/services"
)

// Fetch ingests the feed into the raw layer without rebuilding the catalog.
// Returns the number of newly ingested episodes.
func (r *Runner) Fetch(ctx context.Context, since *time.Time) (int, error) {
	locked, err := r.lock.TryLock()
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "pipeline", "acquire lock", "locking data directory", err)
	}
	if !locked {
		return 0, services.Wrap(services.ErrTransient, "pipeline", "acquire lock", "another run holds the data directory lock", nil)
	}
	defer func() { _ = r.lock.Unlock() }()

	existing, err := r.artifacts.LoadRawEpisodes()
	if err != nil {
		return 0, err
	}
	fetched, err := r.fetcher.Fetch(ctx, existing, since)
	if err != nil {
		return 0, err
	}
	if len(fetched) == 0 {
		return 0, nil
	}

	updated := append(append([]catalog.RawEpisode(nil), existing...), fetched...)
	if err := r.artifacts.SaveRawEpisodes(updated); err != nil {
		return 0, err
	}

	db, err := r.openDB()
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	if err := db.UpsertRawEpisodes(ctx, updated); err != nil {
		return 0, err
	}

	r.logger.Info("feed ingested", logging.Int("new_episodes", len(fetched)))
	return len(fetched), nil
}
