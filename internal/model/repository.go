package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RepoName errors.
var (
	// ErrEmptyRepoName is returned when the repository name is empty.
	ErrEmptyRepoName = errors.New("repository name cannot be empty")
	// ErrInvalidRepoName is returned when the name is not in "owner/name" form.
	ErrInvalidRepoName = errors.New("invalid repository name format (want owner/name)")
)

// RepoName is an immutable value object for a repository's full name.
// The full name is the unique key for everything depwatch stores: the
// same repository discovered by different collectors always normalizes
// to the same RepoName.
type RepoName struct {
	owner string
	name  string
}

// NewRepoName creates a RepoName from an "owner/name" string.
// Leading/trailing whitespace and a leading "/" are tolerated because
// scraped anchors often carry them. Returns an error if either segment
// is empty or the string contains extra path segments.
func NewRepoName(fullName string) (RepoName, error) {
	trimmed := strings.Trim(strings.TrimSpace(fullName), "/")
	if trimmed == "" {
		return RepoName{}, ErrEmptyRepoName
	}

	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return RepoName{}, fmt.Errorf("%w: %q", ErrInvalidRepoName, fullName)
	}

	// Reject names with whitespace; these come from malformed scrape rows.
	if strings.ContainsAny(trimmed, " \t\n") {
		return RepoName{}, fmt.Errorf("%w: %q", ErrInvalidRepoName, fullName)
	}

	return RepoName{owner: parts[0], name: parts[1]}, nil
}

// Owner returns the owner (user or organization) segment.
func (r RepoName) Owner() string { return r.owner }

// Name returns the repository name segment.
func (r RepoName) Name() string { return r.name }

// String returns the canonical "owner/name" form.
func (r RepoName) String() string { return r.owner + "/" + r.name }

// Repository is a normalized dependent repository as stored in the
// database and served by the dashboard.
//
// Design decision: metadata fields (stars, forks, description, pushed-at)
// are mutable and refreshed on every upsert, while discovery fields
// (Source, DiscoveredAt) are set once and kept. This preserves where and
// when a repository was first seen even when later collectors rediscover it.
type Repository struct {
	// ID is the database row ID. Zero for repositories not yet stored.
	ID int64 `json:"id"`

	// FullName is the unique "owner/name" key.
	FullName string `json:"full_name"`

	// Owner is the user or organization that owns the repository.
	Owner string `json:"owner"`

	// Name is the repository name without the owner.
	Name string `json:"name"`

	// HTMLURL is the repository's web URL.
	HTMLURL string `json:"html_url"`

	// Description is the repository description. May be empty.
	Description string `json:"description,omitempty"`

	// Stars is the stargazer count at the last refresh.
	Stars int `json:"stars"`

	// Forks is the fork count at the last refresh.
	Forks int `json:"forks"`

	// Language is the primary language reported by the platform.
	Language string `json:"language,omitempty"`

	// Archived reports whether the repository is archived.
	Archived bool `json:"archived"`

	// Fork reports whether the repository is itself a fork.
	Fork bool `json:"fork"`

	// PushedAt is the time of the last push, as reported by the platform.
	// Zero when the platform did not provide it (scrape-only rows).
	PushedAt time.Time `json:"pushed_at,omitzero"`

	// CreatedAt is the repository creation time on the platform.
	// Zero when unknown.
	CreatedAt time.Time `json:"created_at,omitzero"`

	// Source records which collector first discovered the repository.
	Source Source `json:"source"`

	// DiscoveredAt is when depwatch first stored the repository.
	DiscoveredAt time.Time `json:"discovered_at"`

	// UpdatedAt is when the row was last refreshed by any collector.
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks that the repository carries the minimum data required
// for storage: a well-formed full name consistent with Owner/Name.
func (r *Repository) Validate() error {
	rn, err := NewRepoName(r.FullName)
	if err != nil {
		return err
	}
	if r.Owner != "" && r.Owner != rn.Owner() {
		return fmt.Errorf("%w: owner %q does not match full name %q", ErrInvalidRepoName, r.Owner, r.FullName)
	}
	if r.Name != "" && r.Name != rn.Name() {
		return fmt.Errorf("%w: name %q does not match full name %q", ErrInvalidRepoName, r.Name, r.FullName)
	}
	return nil
}

// Normalize fills derived fields from FullName.
// Owner and Name are derived when empty, and HTMLURL defaults to the
// canonical repository page. Returns an error if FullName is invalid.
func (r *Repository) Normalize() error {
	rn, err := NewRepoName(r.FullName)
	if err != nil {
		return err
	}
	r.FullName = rn.String()
	if r.Owner == "" {
		r.Owner = rn.Owner()
	}
	if r.Name == "" {
		r.Name = rn.Name()
	}
	if r.HTMLURL == "" {
		r.HTMLURL = "https://github.com/" + rn.String()
	}
	return r.Validate()
}
