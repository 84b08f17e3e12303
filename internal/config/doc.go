// Package config loads, normalizes, and validates the seriate configuration.
// Settings come from a TOML file with environment overrides for secrets; a
// missing file falls back to defaults so the pipeline runs out of the box.
package config
