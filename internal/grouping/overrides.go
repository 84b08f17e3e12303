package grouping

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"log/slog"
)

// Catalog loads user-authored series overrides from a JSON file.
type Catalog struct {
	path    string
	logger  *slog.Logger
	mu      sync.RWMutex
	loaded  time.Time
	entries []Override
}

// Override pins a set of episodes to a series id regardless of what the
// automatic grouper decided.
type Override struct {
	SeriesID     string   `json:"seriesId"`
	EpisodeIDs   []string `json:"episodeIds"`
	SeriesKeyRaw string   `json:"seriesKeyRaw,omitempty"`
}

// NewCatalog constructs a catalog backed by the provided JSON file. Returns
// nil when no path is configured; a nil catalog yields no overrides.
func NewCatalog(path string, logger *slog.Logger) *Catalog {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{path: trimmed, logger: logger}
}

// Entries returns the current override list, reloading the backing file when
// its modification time changed. A missing file is not an error.
func (c *Catalog) Entries() ([]Override, error) {
	if c == nil || strings.TrimSpace(c.path) == "" {
		return nil, nil
	}
	if err := c.ensureLoaded(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Override(nil), c.entries...), nil
}

func (c *Catalog) ensureLoaded() error {
	c.mu.RLock()
	path := c.path
	c.mu.RUnlock()

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	c.mu.RLock()
	alreadyLoaded := !c.loaded.IsZero() && c.loaded.Equal(info.ModTime())
	c.mu.RUnlock()
	if alreadyLoaded {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	entries, err := parseOverrides(data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.entries = entries
	c.loaded = info.ModTime()
	c.mu.Unlock()
	c.logger.Info("loaded series overrides", slog.String("path", path), slog.Int("count", len(entries)))
	return nil
}

func parseOverrides(data []byte) ([]Override, error) {
	data = trimUTF8BOM(data)
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var entries []Override
	// Accept either a bare array or an object with an overrides field.
	if data[0] == '{' {
		var wrapper struct {
			Overrides []Override `json:"overrides"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, err
		}
		entries = wrapper.Overrides
	} else {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, err
		}
	}
	normalized := make([]Override, 0, len(entries))
	for _, entry := range entries {
		entry.normalize()
		if entry.SeriesID == "" || len(entry.EpisodeIDs) == 0 {
			continue
		}
		normalized = append(normalized, entry)
	}
	return normalized, nil
}

func (o *Override) normalize() {
	o.SeriesID = strings.TrimSpace(o.SeriesID)
	o.SeriesKeyRaw = strings.TrimSpace(o.SeriesKeyRaw)
	cleaned := make([]string, 0, len(o.EpisodeIDs))
	for _, id := range o.EpisodeIDs {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		cleaned = append(cleaned, trimmed)
	}
	o.EpisodeIDs = cleaned
}

func trimUTF8BOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}
