package config

import (
	"path/filepath"
	"strings"
)

// normalize expands paths, trims strings, and fills derived defaults.
func (c *Config) normalize() error {
	var err error

	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return err
	}
	c.Paths.DatabasePath = strings.TrimSpace(c.Paths.DatabasePath)
	if c.Paths.DatabasePath == "" {
		c.Paths.DatabasePath = filepath.Join(c.Paths.DataDir, "seriate.db")
	} else if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return err
	}

	c.Feed.URL = strings.TrimSpace(c.Feed.URL)
	if c.Feed.TimeoutSeconds <= 0 {
		c.Feed.TimeoutSeconds = 30
	}

	c.CSV.Path = strings.TrimSpace(c.CSV.Path)
	if c.CSV.Path != "" {
		if c.CSV.Path, err = expandPath(c.CSV.Path); err != nil {
			return err
		}
	}

	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.PrimaryModel = strings.TrimSpace(c.LLM.PrimaryModel)
	c.LLM.FallbackModel = strings.TrimSpace(c.LLM.FallbackModel)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 30
	}

	c.Grouping.OverridesPath = strings.TrimSpace(c.Grouping.OverridesPath)
	if c.Grouping.OverridesPath == "" {
		c.Grouping.OverridesPath = filepath.Join(c.Paths.DataDir, "series_overrides.json")
	} else if c.Grouping.OverridesPath, err = expandPath(c.Grouping.OverridesPath); err != nil {
		return err
	}

	c.Slugs.ExtraStopWords = trimAll(c.Slugs.ExtraStopWords)
	c.Slugs.ExtraDomainTopics = trimAll(c.Slugs.ExtraDomainTopics)

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "auto"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	return nil
}

func trimAll(values []string) []string {
	var out []string
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
