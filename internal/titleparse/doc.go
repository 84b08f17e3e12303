// Package titleparse extracts series grouping signals from raw episode
// titles: the series key (the title stem shared by multi-part runs) and the
// part number (arabic or roman).
//
// Parsing is heuristic and operates on feed titles as published. It never
// consults descriptions or any external source, so results are deterministic
// for a given title string.
package titleparse
