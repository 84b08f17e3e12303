package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	possessiveRegex       = regexp.MustCompile(`([a-z0-9]{2,})['` + "’" + `]s\b`)
	typographicDashRegex  = regexp.MustCompile(`[\x{2012}-\x{2015}]`)
	typographicQuoteRegex = regexp.MustCompile(`[\x{2018}-\x{201F}]`)
	apostropheRegex       = regexp.MustCompile(`['` + "’" + `]`)
	disallowedCharRegex   = regexp.MustCompile(`[^a-z0-9\s-]`)
	hyphenRunRegex        = regexp.MustCompile(`-+`)
)

// deaccent decomposes to NFKD and drops combining marks, so "café" and
// "cafe" slugify identically.
var deaccent = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// Namer slugifies text with a configured stop-word and domain-topic
// vocabulary. The zero value is not usable; construct with NewNamer.
type Namer struct {
	stopWords    map[string]struct{}
	domainTopics map[string]struct{}
}

// NewNamer builds a Namer with the default vocabularies plus the given
// extensions. Extensions are lowercased before use.
func NewNamer(extraStopWords, extraDomainTopics []string) *Namer {
	return &Namer{
		stopWords:    buildSet(defaultStopWords, lowerAll(extraStopWords)),
		domainTopics: buildSet(defaultDomainTopics, lowerAll(extraDomainTopics)),
	}
}

// Slugify converts arbitrary text into a lowercase hyphenated slug.
// Diacritics are stripped, possessives collapse onto their noun, typographic
// dashes become separators, quotes and apostrophes vanish, and stop words are
// removed. Intra-word hyphens survive. Token budgeting is the caller's job.
func (n *Namer) Slugify(input string) string {
	if input == "" {
		return ""
	}

	normalized, _, err := transform.String(deaccent, input)
	if err != nil {
		normalized = input
	}

	lower := strings.ToLower(normalized)
	lower = possessiveRegex.ReplaceAllString(lower, "$1")
	lower = typographicDashRegex.ReplaceAllString(lower, " ")
	lower = typographicQuoteRegex.ReplaceAllString(lower, "")
	lower = apostropheRegex.ReplaceAllString(lower, "")
	lower = disallowedCharRegex.ReplaceAllString(lower, " ")

	var tokens []string
	for _, token := range strings.Fields(lower) {
		if _, stop := n.stopWords[token]; stop {
			continue
		}
		tokens = append(tokens, token)
	}
	if len(tokens) == 0 {
		return ""
	}
	return hyphenRunRegex.ReplaceAllString(strings.Join(tokens, "-"), "-")
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
