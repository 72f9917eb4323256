package model

import "time"

// LanguageCount is one entry of a language breakdown.
type LanguageCount struct {
	// Language is the primary language name. "(none)" for repositories
	// without a reported language.
	Language string `json:"language"`

	// Count is the number of repositories with this language.
	Count int `json:"count"`
}

// SourceCount is one entry of a per-source breakdown.
type SourceCount struct {
	// Source is the discovery source.
	Source Source `json:"source"`

	// Count is the number of repositories first discovered by this source.
	Count int `json:"count"`
}

// Stats holds aggregate statistics over all stored repositories.
// It is computed by the database layer and rendered by both the
// dashboard and the stats CLI command.
type Stats struct {
	// TotalRepositories is the number of stored repositories.
	TotalRepositories int `json:"total_repositories"`

	// TotalStars is the sum of stargazer counts.
	TotalStars int `json:"total_stars"`

	// TotalForks is the sum of fork counts.
	TotalForks int `json:"total_forks"`

	// ArchivedCount is the number of archived repositories.
	ArchivedCount int `json:"archived_count"`

	// ForkCount is the number of repositories that are themselves forks.
	ForkCount int `json:"fork_count"`

	// Languages is the language breakdown, most common first.
	Languages []LanguageCount `json:"languages,omitempty"`

	// Sources is the per-discovery-source breakdown.
	Sources []SourceCount `json:"sources,omitempty"`

	// NewLastWeek is the number of repositories discovered in the last 7 days.
	NewLastWeek int `json:"new_last_week"`

	// GeneratedAt is when these statistics were computed.
	GeneratedAt time.Time `json:"generated_at"`
}
