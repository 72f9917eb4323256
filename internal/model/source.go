package model

// Source identifies which collector discovered a repository.
type Source string

const (
	// SourceRESTSearch marks repositories found via the REST code search API.
	SourceRESTSearch Source = "rest-search"
	// SourceGraphQLSearch marks repositories found via the GraphQL search API.
	SourceGraphQLSearch Source = "graphql-search"
	// SourceDependentsPage marks repositories scraped from the dependents listing page.
	SourceDependentsPage Source = "dependents-page"
	// SourceManual marks repositories added by hand.
	SourceManual Source = "manual"
	// SourceEnrichment labels the metadata refresh stage in run tallies.
	// It is never stored as a repository's discovery source.
	SourceEnrichment Source = "enrichment"
)

// Valid reports whether s may be stored as a repository's discovery source.
func (s Source) Valid() bool {
	switch s {
	case SourceRESTSearch, SourceGraphQLSearch, SourceDependentsPage, SourceManual:
		return true
	default:
		return false
	}
}

// String returns the string representation of the source.
func (s Source) String() string {
	switch s {
	case SourceRESTSearch, SourceGraphQLSearch, SourceDependentsPage, SourceManual, SourceEnrichment:
		return string(s)
	default:
		return "unknown"
	}
}
