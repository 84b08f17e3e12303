// Package slug turns titles into URL-safe identifiers and assigns unique
// slugs to series and episodes from one shared namespace.
//
// Slugification is lossy on purpose: diacritics, possessives, typographic
// punctuation, and stop words are all removed so that near-identical titles
// land on the same base slug. Uniqueness is then restored with numeric
// suffixes against a taken set shared by both record types.
package slug
