// Package logging configures structured slog output for the pipeline and
// provides the attribute helpers and field names shared across components.
package logging
