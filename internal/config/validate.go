package config

import (
	"fmt"
	"net/url"

	"seriate/internal/services"
)

var validLogFormats = map[string]struct{}{
	"auto":    {},
	"console": {},
	"json":    {},
}

var validLogLevels = map[string]struct{}{
	"debug":   {},
	"info":    {},
	"warn":    {},
	"warning": {},
	"error":   {},
}

// Validate checks the normalized configuration for contradictions.
func (c *Config) Validate() error {
	fail := func(operation, message string) error {
		return services.Wrap(services.ErrConfiguration, "config", operation, message, nil)
	}

	if c.Paths.DataDir == "" {
		return fail("validate paths", "data_dir must be set")
	}

	if c.Feed.URL == "" {
		return fail("validate feed", "url must be set")
	}
	if parsed, err := url.Parse(c.Feed.URL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fail("validate feed", fmt.Sprintf("url %q is not an absolute URL", c.Feed.URL))
	}

	if c.Grouping.MaxGapDays <= 0 {
		return fail("validate grouping", "max_gap_days must be positive")
	}

	if _, ok := validLogFormats[c.Logging.Format]; !ok {
		return fail("validate logging", fmt.Sprintf("format %q must be auto, console, or json", c.Logging.Format))
	}
	if _, ok := validLogLevels[c.Logging.Level]; !ok {
		return fail("validate logging", fmt.Sprintf("level %q must be debug, info, warn, or error", c.Logging.Level))
	}

	return nil
}
