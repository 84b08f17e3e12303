package pipeline

import (
	"seriate/internal/logging"
	"seriate/internal/services"
)

// RebuildSlugs recomputes every slug from the persisted public records and
// rewrites the public artifacts plus the registry. Useful after changing the
// slug vocabulary in config.
func (r *Runner) RebuildSlugs() (int, error) {
	locked, err := r.lock.TryLock()
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "pipeline", "acquire lock", "locking data directory", err)
	}
	if !locked {
		return 0, services.Wrap(services.ErrTransient, "pipeline", "acquire lock", "another run holds the data directory lock", nil)
	}
	defer func() { _ = r.lock.Unlock() }()

	episodes, err := r.artifacts.LoadPublicEpisodes()
	if err != nil {
		return 0, err
	}
	series, err := r.artifacts.LoadPublicSeries()
	if err != nil {
		return 0, err
	}
	if len(episodes) == 0 && len(series) == 0 {
		return 0, services.Wrap(services.ErrNotFound, "pipeline", "rebuild slugs", "no public records; run a build first", nil)
	}

	registry := r.assignSlugs(series, episodes)

	if err := r.artifacts.SavePublicEpisodes(episodes); err != nil {
		return 0, err
	}
	if err := r.artifacts.SavePublicSeries(series); err != nil {
		return 0, err
	}
	if err := r.artifacts.SaveSlugRegistry(registry); err != nil {
		return 0, err
	}

	r.logger.Info("slugs rebuilt", logging.Int(logging.FieldCount, len(registry)))
	return len(registry), nil
}
