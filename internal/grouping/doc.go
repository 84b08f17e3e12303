// Package grouping clusters multi-part episodes into series.
//
// The grouper is a single pass over episodes in publish order. A part-1
// episode opens a bucket keyed by the slugified series stem; later parts with
// the same stem join it while the publish gap stays within the configured
// window. Buckets close on a gap, on a new part 1, or at end of input.
// Buckets that never collect a second member are discarded. Manual overrides
// run as a final deterministic pass over the assembled series.
//
// Two asymmetries are deliberate and load-bearing: an episode whose part
// marker is not 1 never opens a bucket, and a gap closure does not retry the
// closing episode against a fresh bucket. Changing either reshuffles series
// ids across the whole catalog.
package grouping
