// Package model defines the core data structures used throughout depwatch.
//
// This package contains the following main types:
//   - Repository: A normalized dependent repository row
//   - RepoName: Validated "owner/name" value object
//   - Source: Where a repository was discovered (REST search, GraphQL search, dependents page)
//   - Stats: Aggregate statistics over the stored repositories
//   - RunSummary: The outcome of a single collection run
//
// Design principles:
//   - Models are pure data structures with minimal behavior
//   - Validation lives next to the type it validates
//   - All types are JSON-serializable for API responses and reports
package model
