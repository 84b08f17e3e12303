package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"seriate/internal/catalog"
	"seriate/internal/config"
	"seriate/internal/feed"
	"seriate/internal/grouping"
	"seriate/internal/llm"
	"seriate/internal/logging"
	"seriate/internal/slug"
	"seriate/internal/store"
	"seriate/internal/validate"
)

// lockFileName guards the data directory against concurrent runs.
const lockFileName = ".seriate.lock"

// Fetcher is the slice of feed.Fetcher the runner needs.
type Fetcher interface {
	Fetch(ctx context.Context, existing []catalog.RawEpisode, since *time.Time) ([]catalog.RawEpisode, error)
}

// Runner wires every stage of the build together. Construct with New and
// reuse across runs; Run itself is serialized by the data-directory lock.
type Runner struct {
	cfg       *config.Config
	logger    *slog.Logger
	artifacts *store.Artifacts
	ledger    *store.Ledger
	lock      *flock.Flock
	fetcher   Fetcher
	completer llm.Completer
	enricher  *llm.Enricher
	grouper   *grouping.Grouper
	overrides *grouping.Catalog
	namer     *slug.Namer
	validator *validate.Validator
	now       func() time.Time
	newRunID  func() string
	openDB    func() (*store.DB, error)
}

// Option customizes a Runner, mostly for tests.
type Option func(*Runner)

// WithFetcher substitutes the feed fetcher.
func WithFetcher(fetcher Fetcher) Option {
	return func(r *Runner) {
		if fetcher != nil {
			r.fetcher = fetcher
		}
	}
}

// WithCompleter substitutes the LLM completer behind the enricher.
func WithCompleter(completer llm.Completer) Option {
	return func(r *Runner) {
		if completer != nil {
			r.completer = completer
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRunIDSource overrides run id generation.
func WithRunIDSource(source func() string) Option {
	return func(r *Runner) {
		if source != nil {
			r.newRunID = source
		}
	}
}

// New builds a runner from validated configuration. The data directory must
// already exist (config.EnsureDirectories handles that).
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	validator, err := validate.New()
	if err != nil {
		return nil, err
	}

	namer := slug.NewNamer(cfg.Slugs.ExtraStopWords, cfg.Slugs.ExtraDomainTopics)
	dataDir := cfg.Paths.DataDir

	r := &Runner{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		artifacts: store.NewArtifacts(dataDir, logger),
		ledger:    store.NewLedger(filepath.Join(dataDir, store.LedgerFile)),
		lock:      flock.New(filepath.Join(dataDir, lockFileName)),
		grouper:   grouping.NewGrouper(namer, cfg.Grouping.MaxGapDays, logging.NewComponentLogger(logger, "grouping")),
		overrides: grouping.NewCatalog(cfg.Grouping.OverridesPath, logging.NewComponentLogger(logger, "grouping")),
		namer:     namer,
		validator: validator,
		now:       time.Now,
		newRunID:  uuid.NewString,
		openDB: func() (*store.DB, error) {
			return store.OpenDB(cfg.Paths.DatabasePath)
		},
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.fetcher == nil {
		r.fetcher = feed.NewFetcher(cfg.Feed.URL,
			feed.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Feed.TimeoutSeconds) * time.Second}),
			feed.WithLogger(logging.NewComponentLogger(logger, "feed")),
			feed.WithClock(r.now))
	}
	if r.completer == nil {
		r.completer = llm.NewClient(llm.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			PrimaryModel:   cfg.LLM.PrimaryModel,
			FallbackModel:  cfg.LLM.FallbackModel,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		})
	}
	r.enricher = llm.NewEnricher(r.completer,
		llm.WithLogger(logging.NewComponentLogger(logger, "llm")),
		llm.WithClock(r.now))

	return r, nil
}

// Artifacts exposes the artifact store, mainly for read-only commands.
func (r *Runner) Artifacts() *store.Artifacts { return r.artifacts }

// Ledger exposes the error ledger for read-only commands.
func (r *Runner) Ledger() *store.Ledger { return r.ledger }
