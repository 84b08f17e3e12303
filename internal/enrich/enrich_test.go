package enrich

import (
	"testing"
	"time"

	"seriate/internal/catalog"
)

func TestCleanDescription(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text untouched", "Rome falls in 476.", "Rome falls in 476."},
		{"tags stripped", "<p>Rome <strong>falls</strong> in 476.</p>", "Rome falls in 476."},
		{"entities decoded", "Antony &amp; Cleopatra", "Antony & Cleopatra"},
		{"paragraphs separated", "<p>First.</p><p>Second.</p>", "First. Second."},
		{"script dropped", "<p>Visible</p><script>var x = 1;</script>", "Visible"},
		{"whitespace collapsed", "  a \n\n b\t c  ", "a b c"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanDescription(tc.input); got != tc.want {
				t.Fatalf("CleanDescription(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestCleanTitle(t *testing.T) {
	if got := CleanTitle("613. Nelson&#8217;s Last Stand"); got != "613. Nelson’s Last Stand" {
		t.Fatalf("CleanTitle = %q", got)
	}
}

func TestBuildEpisodesDeterministic(t *testing.T) {
	raw := []catalog.RawEpisode{
		{
			EpisodeID:     "ep-1",
			Title:         "The Fall of Rome: Part 1",
			Description:   "<p>The end of the western empire.</p>",
			PublishedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			RSSLastSeenAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			Source:        catalog.SourceMetadata{ItunesEpisode: catalog.Int(613)},
		},
	}

	first := BuildEpisodes(raw)
	second := BuildEpisodes(raw)

	ep := first["ep-1"]
	if ep == nil {
		t.Fatal("missing episode")
	}
	if ep.CleanTitle != "The Fall of Rome: Part 1" {
		t.Fatalf("clean title = %q", ep.CleanTitle)
	}
	if ep.CleanDescription != "The end of the western empire." {
		t.Fatalf("clean description = %q", ep.CleanDescription)
	}
	if ep.Fingerprint != second["ep-1"].Fingerprint {
		t.Fatal("fingerprint not deterministic")
	}
	if ep.Fingerprint != catalog.EpisodeFingerprint(ep.CleanTitle, ep.CleanDescription) {
		t.Fatal("fingerprint does not match clean content")
	}
	if ep.ItunesEpisode == nil || *ep.ItunesEpisode != 613 {
		t.Fatalf("itunes episode = %v", ep.ItunesEpisode)
	}
	if ep.YearConfidence != catalog.ConfidenceUnknown {
		t.Fatalf("year confidence = %q", ep.YearConfidence)
	}
}
