// Package csvjoin loads the fan-curated episode sheet and joins its era and
// region tags onto episodes by feed episode number.
package csvjoin

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"seriate/internal/services"
)

// Row is one curated sheet entry. Several rows may share an episode number
// when an episode spans eras or regions.
type Row struct {
	Episode int
	Title   string
	Era     string
	Region  string
}

// Load reads the curated CSV. Header names are matched case-insensitively
// ("Episode", "Time Period"/"Era", "Region", "Title"). Rows without a
// parseable episode number or without any era/region value are skipped, as
// are spreadsheet error artifacts like "#VALUE!".
func Load(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "csv", "open", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads curated rows from r. See Load for the column contract.
func Parse(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrValidation, "csv", "read header", "", err)
	}

	columns := indexColumns(header)
	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "csv", "read row", "", err)
		}

		episodeValue := field(record, columns["episode"])
		if episodeValue == "" || episodeValue == "#VALUE!" {
			continue
		}
		episode, err := strconv.Atoi(episodeValue)
		if err != nil {
			continue
		}

		era := field(record, columns["era"])
		region := field(record, columns["region"])
		if era == "" && region == "" {
			continue
		}

		rows = append(rows, Row{
			Episode: episode,
			Title:   field(record, columns["title"]),
			Era:     era,
			Region:  region,
		})
	}
	return rows, nil
}

// SubjectTags folds rows into per-episode tag lists: the sorted union of the
// episode's distinct eras followed by its distinct regions.
func SubjectTags(rows []Row) map[int][]string {
	eras := make(map[int]map[string]struct{})
	regions := make(map[int]map[string]struct{})
	for _, row := range rows {
		if row.Era != "" {
			addTag(eras, row.Episode, row.Era)
		}
		if row.Region != "" {
			addTag(regions, row.Episode, row.Region)
		}
	}

	out := make(map[int][]string, len(eras)+len(regions))
	for episode := range eras {
		out[episode] = append(out[episode], sortedKeys(eras[episode])...)
	}
	for episode := range regions {
		out[episode] = append(out[episode], sortedKeys(regions[episode])...)
	}
	return out
}

func indexColumns(header []string) map[string]int {
	columns := map[string]int{"episode": -1, "era": -1, "region": -1, "title": -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "episode":
			columns["episode"] = i
		case "time period", "era":
			columns["era"] = i
		case "region":
			columns["region"] = i
		case "title":
			columns["title"] = i
		}
	}
	return columns
}

func field(record []string, index int) string {
	if index < 0 || index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}

func addTag(set map[int]map[string]struct{}, episode int, tag string) {
	if set[episode] == nil {
		set[episode] = make(map[string]struct{})
	}
	set[episode][tag] = struct{}{}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
