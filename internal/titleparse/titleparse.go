package titleparse

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberPrefixRegex = regexp.MustCompile(`^\s*\d+\s*[:.)–—-]?\s*`)
	partSuffixRegex   = regexp.MustCompile(`(?i)\s*[-–—:,]?\s*(?:\((?:part|pt\.?|episode)\s*[ivxlcdm\d]+\)|(?:part|pt\.?|episode)\s*[ivxlcdm\d]+)\s*$`)
	partMarkerRegex   = regexp.MustCompile(`(?i)\b(?:part|pt\.?|episode)\s*(\d+|[ivxlcdm]+)`)
	whitespaceRegex   = regexp.MustCompile(`\s+`)
	digitsRegex       = regexp.MustCompile(`^\d+$`)
)

// Delimiters tried in order when splitting a title into series stem and
// subtitle. A bare colon binds tighter than spaced dashes.
var segmentDelimiters = []string{":", " - ", " – ", " — "}

var romanNumerals = map[string]int{
	"i": 1, "ii": 2, "iii": 3, "iv": 4, "v": 5,
	"vi": 6, "vii": 7, "viii": 8, "ix": 9, "x": 10,
	"xi": 11, "xii": 12, "xiii": 13, "xiv": 14, "xv": 15,
	"xvi": 16, "xvii": 17, "xviii": 18, "xix": 19, "xx": 20,
	"xxi": 21, "xxii": 22, "xxiii": 23, "xxiv": 24, "xxv": 25,
	"xxvi": 26, "xxvii": 27, "xxviii": 28, "xxix": 29, "xxx": 30,
	"xxxi": 31, "xxxii": 32, "xxxiii": 33, "xxxiv": 34, "xxxv": 35,
	"xxxvi": 36, "xxxvii": 37, "xxxviii": 38, "xxxix": 39, "xl": 40,
	"xli": 41, "xlii": 42, "xliii": 43, "xliv": 44, "xlv": 45,
	"xlvi": 46, "xlvii": 47, "xlviii": 48, "xlix": 49, "l": 50,
}

// SeriesKey is the parsed series stem of an episode title.
type SeriesKey struct {
	// Raw preserves the original casing of the stem.
	Raw string
	// Normalized is Raw lowercased; it is the comparison form.
	Normalized string
}

// ParseSeriesKey derives the series stem from a title: strips a leading
// episode number and a trailing part marker, collapses whitespace, then keeps
// the segment before the first delimiter when that segment is at least three
// characters (otherwise the segment after it). Returns nil when nothing
// usable remains.
func ParseSeriesKey(title string) *SeriesKey {
	stripped := strings.TrimSpace(numberPrefixRegex.ReplaceAllString(title, ""))
	stripped = strings.TrimSpace(partSuffixRegex.ReplaceAllString(stripped, ""))
	if stripped == "" {
		return nil
	}
	collapsed := collapseWhitespace(stripped)
	if collapsed == "" {
		return nil
	}
	raw := collapseWhitespace(splitOnDelimiters(collapsed))
	if raw == "" {
		return nil
	}
	return &SeriesKey{Raw: raw, Normalized: strings.ToLower(raw)}
}

// ParsePartNumber finds the first part marker in the title ("Part 3",
// "Pt. II", "Episode 7") and returns its numeric value. Roman numerals are
// recognized up to L (50). Returns nil when no marker parses.
func ParsePartNumber(title string) *int {
	match := partMarkerRegex.FindStringSubmatch(title)
	if match == nil {
		return nil
	}
	value := match[1]
	if digitsRegex.MatchString(value) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil
		}
		return &n
	}
	if n, ok := romanNumerals[strings.ToLower(value)]; ok {
		return &n
	}
	return nil
}

func collapseWhitespace(value string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(value, " "))
}

func splitOnDelimiters(input string) string {
	for _, delimiter := range segmentDelimiters {
		index := strings.Index(input, delimiter)
		if index == -1 {
			continue
		}
		left := strings.TrimSpace(input[:index])
		if len(left) >= 3 {
			return left
		}
		right := strings.TrimSpace(input[index+len(delimiter):])
		if right != "" {
			return right
		}
	}
	return input
}
