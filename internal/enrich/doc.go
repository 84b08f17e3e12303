// Package enrich derives the programmatic view of raw episodes: cleaned
// title and description text and the content fingerprint that keys LLM
// enrichment caches. The derivation is pure and repeatable; running it twice
// over the same raw records yields identical output.
package enrich
