// Package catalog defines the data model shared across the build pipeline:
// raw feed episodes, programmatically derived episodes and series, LLM
// enrichment cache entries, and the published public records.
//
// Raw episodes are immutable once ingested. Programmatic records are
// regenerated on every run and never act as a source of truth. Public records
// are the fully merged, slug-bearing view rebuilt wholesale each run.
package catalog
