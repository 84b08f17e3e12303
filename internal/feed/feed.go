// Package feed ingests the podcast RSS feed into raw episode records.
// Ingestion is append-only: an item whose guid is already known is never
// re-ingested, so upstream edits cannot rewrite history.
package feed

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"seriate/internal/catalog"
	"seriate/internal/logging"
	"seriate/internal/services"
)

const defaultHTTPTimeout = 30 * time.Second

// Fetcher downloads and normalizes the RSS feed.
type Fetcher struct {
	feedURL string
	parser  *gofeed.Parser
	logger  *slog.Logger
	now     func() time.Time
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client used for feed downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.parser.Client = client
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithClock overrides the rssLastSeenAt timestamp source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFetcher constructs a fetcher for the given feed URL.
func NewFetcher(feedURL string, opts ...Option) *Fetcher {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: defaultHTTPTimeout}
	f := &Fetcher{
		feedURL: feedURL,
		parser:  parser,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the feed and returns the episodes not present in existing,
// newest items included. Items missing a guid, publish date, or enclosure are
// skipped. When since is non-nil, episodes published before it are dropped.
func (f *Fetcher) Fetch(ctx context.Context, existing []catalog.RawEpisode, since *time.Time) ([]catalog.RawEpisode, error) {
	parsed, err := f.parser.ParseURLWithContext(f.feedURL, ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "fetch", "parse feed", f.feedURL, err)
	}

	knownGUIDs := make(map[string]struct{}, len(existing))
	for _, episode := range existing {
		knownGUIDs[episode.Source.GUID] = struct{}{}
	}

	seenAt := f.now().UTC()
	var episodes []catalog.RawEpisode
	for _, item := range parsed.Items {
		episode, ok := f.normalizeItem(item, seenAt)
		if !ok {
			continue
		}
		if _, known := knownGUIDs[episode.Source.GUID]; known {
			continue
		}
		if since != nil && episode.PublishedAt.Before(*since) {
			continue
		}
		episodes = append(episodes, episode)
	}

	f.logger.Info("feed fetched",
		logging.String("url", f.feedURL),
		logging.Int("items", len(parsed.Items)),
		logging.Int("new_episodes", len(episodes)))
	return episodes, nil
}

func (f *Fetcher) normalizeItem(item *gofeed.Item, seenAt time.Time) (catalog.RawEpisode, bool) {
	var empty catalog.RawEpisode
	if item == nil {
		return empty, false
	}

	guid := strings.TrimSpace(item.GUID)
	enclosureURL := firstEnclosureURL(item)
	if guid == "" || item.PublishedParsed == nil || enclosureURL == "" {
		f.logger.Debug("feed item skipped",
			logging.String("title", item.Title),
			logging.Bool("has_guid", guid != ""),
			logging.Bool("has_pub_date", item.PublishedParsed != nil),
			logging.Bool("has_enclosure", enclosureURL != ""))
		return empty, false
	}

	description := item.Description
	if strings.TrimSpace(item.Content) != "" {
		description = item.Content
	}

	return catalog.RawEpisode{
		EpisodeID:     guid,
		Title:         item.Title,
		PublishedAt:   item.PublishedParsed.UTC(),
		Description:   description,
		AudioURL:      enclosureURL,
		RSSLastSeenAt: seenAt,
		Source: catalog.SourceMetadata{
			GUID:          guid,
			ItunesEpisode: itunesEpisodeNumber(item),
			PlatformID:    platformID(item),
			EnclosureURL:  enclosureURL,
		},
	}, true
}

func firstEnclosureURL(item *gofeed.Item) string {
	for _, enclosure := range item.Enclosures {
		if enclosure != nil && strings.TrimSpace(enclosure.URL) != "" {
			return strings.TrimSpace(enclosure.URL)
		}
	}
	return ""
}

func itunesEpisodeNumber(item *gofeed.Item) *int {
	if item.ITunesExt == nil {
		return nil
	}
	value := strings.TrimSpace(item.ITunesExt.Episode)
	if value == "" {
		return nil
	}
	number, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	return &number
}

// platformID pulls the hosting platform's item id when the feed carries one
// (megaphone:id on Megaphone-hosted feeds).
func platformID(item *gofeed.Item) string {
	for _, namespace := range []string{"megaphone"} {
		extensions, ok := item.Extensions[namespace]
		if !ok {
			continue
		}
		for _, ext := range extensions["id"] {
			if value := strings.TrimSpace(ext.Value); value != "" {
				return value
			}
		}
	}
	return ""
}
