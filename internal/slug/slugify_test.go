package slug

import "testing"

func TestSlugify(t *testing.T) {
	namer := NewNamer(nil, nil)
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"stop words removed", "The Battle of the Nile", "battle-nile"},
		{"all stop words", "The And Of", ""},
		{"empty input", "", ""},
		{"possessive collapsed", "The King's Speech", "kings-speech"},
		{"curly possessive collapsed", "The King’s Speech", "kings-speech"},
		{"diacritics stripped", "Café Münster", "cafe-munster"},
		{"em dash splits", "Rome—Fall", "rome-fall"},
		{"typographic quotes removed", "“Quoted” Title", "quoted-title"},
		{"intra-word hyphen kept", "Well-Known Facts", "well-known-facts"},
		{"punctuation becomes space", "Rise & Fall!", "rise-fall"},
		{"case folded", "AGINCOURT", "agincourt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := namer.Slugify(tc.input); got != tc.want {
				t.Fatalf("Slugify(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSlugifyStopWordExtension(t *testing.T) {
	namer := NewNamer([]string{"Presents"}, nil)
	if got := namer.Slugify("History Presents Rome"); got != "history-rome" {
		t.Fatalf("Slugify = %q, want %q", got, "history-rome")
	}
}
