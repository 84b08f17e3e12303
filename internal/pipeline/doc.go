// Package pipeline orchestrates a full catalog build: feed ingest, text
// enrichment, series grouping, cached LLM enrichment, composition, slug
// assignment, validation, and artifact persistence. A flock-guarded lock
// keeps concurrent runs from interleaving writes to the data directory.
package pipeline
