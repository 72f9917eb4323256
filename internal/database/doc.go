// Package database provides SQLite-based storage for depwatch.
//
// This package implements the DependentsDB, which stores:
//   - Dependent repositories, uniquely keyed by "owner/name"
//   - Collection run summaries for history display
//
// The repositories table is the single source of truth shared by the
// collectors (writers) and the dashboard (reader). Deduplication across
// collectors falls out of the unique key plus UPSERT semantics: a
// rediscovered repository refreshes its mutable metadata but keeps its
// original discovery source and time.
package database
