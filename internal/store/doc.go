// Package store persists the catalog build artifacts. JSON artifacts are the
// source of truth and are written atomically (temp file + rename) with
// deterministic ordering so diffs stay reviewable; a SQLite mirror backs
// run history and fast lookups over the raw layer.
package store
