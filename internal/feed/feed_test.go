package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"seriate/internal/catalog"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"
  xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd"
  xmlns:content="http://purl.org/rss/1.0/modules/content/"
  xmlns:megaphone="https://megaphone.fm/rss">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>613. The Fall of Rome</title>
      <guid> guid-613 </guid>
      <pubDate>Mon, 01 Jan 2024 06:00:00 GMT</pubDate>
      <description>Plain description</description>
      <content:encoded><![CDATA[<p>Rich description</p>]]></content:encoded>
      <itunes:episode>613</itunes:episode>
      <megaphone:id>MEG613</megaphone:id>
      <enclosure url="https://cdn.example.com/613.mp3" type="audio/mpeg" length="1"/>
    </item>
    <item>
      <title>612. The Vikings</title>
      <guid>guid-612</guid>
      <pubDate>Mon, 25 Dec 2023 06:00:00 GMT</pubDate>
      <description>Older episode</description>
      <enclosure url="https://cdn.example.com/612.mp3" type="audio/mpeg" length="1"/>
    </item>
    <item>
      <title>Teaser without enclosure</title>
      <guid>guid-teaser</guid>
      <pubDate>Tue, 02 Jan 2024 06:00:00 GMT</pubDate>
      <description>No audio</description>
    </item>
    <item>
      <title>Item without guid</title>
      <pubDate>Tue, 02 Jan 2024 06:00:00 GMT</pubDate>
      <enclosure url="https://cdn.example.com/x.mp3" type="audio/mpeg" length="1"/>
    </item>
  </channel>
</rss>`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleFeed))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchNormalizesItems(t *testing.T) {
	server := feedServer(t)
	seenAt := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	fetcher := NewFetcher(server.URL, WithClock(func() time.Time { return seenAt }))

	episodes, err := fetcher.Fetch(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("episodes = %d, want 2 (%+v)", len(episodes), episodes)
	}

	ep := episodes[0]
	if ep.EpisodeID != "guid-613" {
		t.Fatalf("episode id = %q, want trimmed guid", ep.EpisodeID)
	}
	if ep.Description != "<p>Rich description</p>" {
		t.Fatalf("description = %q, want content:encoded to win", ep.Description)
	}
	if ep.AudioURL != "https://cdn.example.com/613.mp3" {
		t.Fatalf("audio url = %q", ep.AudioURL)
	}
	if ep.Source.ItunesEpisode == nil || *ep.Source.ItunesEpisode != 613 {
		t.Fatalf("itunes episode = %v", ep.Source.ItunesEpisode)
	}
	if ep.Source.PlatformID != "MEG613" {
		t.Fatalf("platform id = %q", ep.Source.PlatformID)
	}
	if !ep.RSSLastSeenAt.Equal(seenAt) {
		t.Fatalf("rssLastSeenAt = %v", ep.RSSLastSeenAt)
	}
	if !ep.PublishedAt.Equal(time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("publishedAt = %v", ep.PublishedAt)
	}

	if episodes[1].EpisodeID != "guid-612" {
		t.Fatalf("second episode = %q", episodes[1].EpisodeID)
	}
	if episodes[1].Description != "Older episode" {
		t.Fatalf("description fallback = %q", episodes[1].Description)
	}
}

func TestFetchSkipsKnownGuids(t *testing.T) {
	server := feedServer(t)
	fetcher := NewFetcher(server.URL)

	existing := []catalog.RawEpisode{
		{EpisodeID: "guid-613", Source: catalog.SourceMetadata{GUID: "guid-613"}},
	}
	episodes, err := fetcher.Fetch(context.Background(), existing, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(episodes) != 1 || episodes[0].EpisodeID != "guid-612" {
		t.Fatalf("episodes = %+v", episodes)
	}
}

func TestFetchSinceFilter(t *testing.T) {
	server := feedServer(t)
	fetcher := NewFetcher(server.URL)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	episodes, err := fetcher.Fetch(context.Background(), nil, &since)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(episodes) != 1 || episodes[0].EpisodeID != "guid-613" {
		t.Fatalf("episodes = %+v", episodes)
	}
}

func TestFetchFeedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fetcher := NewFetcher(server.URL)
	if _, err := fetcher.Fetch(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for failed feed download")
	}
}
