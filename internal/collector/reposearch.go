package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/depwatch/internal/github"
	"github.com/nao1215/depwatch/internal/model"
)

// RepoSearch discovers dependents through the GraphQL search API.
// It searches repositories whose description or README mentions the
// toolkit and pages through results with cursor pagination.
//
// Design decision: GraphQL returns full repository metadata in the
// search response itself, so rows from this source never need the
// enrichment stage. That makes it worth carrying alongside REST code
// search even though the two overlap heavily.
type RepoSearch struct {
	// client is the shared API client.
	client *github.Client

	// store receives discovered repositories.
	store Store

	// toolkit is the "owner/name" being tracked.
	toolkit string

	// maxPages limits cursor pages fetched per run.
	maxPages int

	// delay is the pause between page fetches.
	delay time.Duration

	// logger is used for per-page progress logging.
	logger *slog.Logger
}

// RepoSearchOption configures a RepoSearch.
type RepoSearchOption func(*RepoSearch)

// WithRepoSearchMaxPages limits cursor pages fetched per run.
func WithRepoSearchMaxPages(n int) RepoSearchOption {
	return func(r *RepoSearch) {
		r.maxPages = n
	}
}

// WithRepoSearchDelay sets the pause between page fetches.
func WithRepoSearchDelay(d time.Duration) RepoSearchOption {
	return func(r *RepoSearch) {
		r.delay = d
	}
}

// WithRepoSearchLogger sets a custom logger.
func WithRepoSearchLogger(logger *slog.Logger) RepoSearchOption {
	return func(r *RepoSearch) {
		r.logger = logger
	}
}

// NewRepoSearch creates a GraphQL search collector for the toolkit.
func NewRepoSearch(client *github.Client, store Store, toolkit string, opts ...RepoSearchOption) *RepoSearch {
	r := &RepoSearch{
		client:   client,
		store:    store,
		toolkit:  toolkit,
		maxPages: 10,
		delay:    2 * time.Second,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// Name returns the collector's name for logging.
func (r *RepoSearch) Name() string { return "graphql-repo-search" }

// searchQuery is the GraphQL document for one page of repository search.
const searchQuery = `
query($q: String!, $after: String) {
  search(query: $q, type: REPOSITORY, first: 100, after: $after) {
    repositoryCount
    pageInfo {
      hasNextPage
      endCursor
    }
    nodes {
      ... on Repository {
        nameWithOwner
        description
        url
        stargazerCount
        forkCount
        isArchived
        isFork
        pushedAt
        createdAt
        primaryLanguage {
          name
        }
      }
    }
  }
}`

// searchResult mirrors the GraphQL response shape.
type searchResult struct {
	Search struct {
		RepositoryCount int `json:"repositoryCount"`
		PageInfo        struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
		Nodes []searchNode `json:"nodes"`
	} `json:"search"`
}

// searchNode is one repository node of the search response.
type searchNode struct {
	NameWithOwner   string    `json:"nameWithOwner"`
	Description     string    `json:"description"`
	URL             string    `json:"url"`
	StargazerCount  int       `json:"stargazerCount"`
	ForkCount       int       `json:"forkCount"`
	IsArchived      bool      `json:"isArchived"`
	IsFork          bool      `json:"isFork"`
	PushedAt        time.Time `json:"pushedAt"`
	CreatedAt       time.Time `json:"createdAt"`
	PrimaryLanguage *struct {
		Name string `json:"name"`
	} `json:"primaryLanguage"`
}

// toRepository converts a search node to the storage model.
func (n *searchNode) toRepository() model.Repository {
	repo := model.Repository{
		FullName:    n.NameWithOwner,
		HTMLURL:     n.URL,
		Description: n.Description,
		Stars:       n.StargazerCount,
		Forks:       n.ForkCount,
		Archived:    n.IsArchived,
		Fork:        n.IsFork,
		PushedAt:    n.PushedAt,
		CreatedAt:   n.CreatedAt,
		Source:      model.SourceGraphQLSearch,
	}
	if n.PrimaryLanguage != nil {
		repo.Language = n.PrimaryLanguage.Name
	}
	return repo
}

// Collect pages through the search results with cursor pagination.
func (r *RepoSearch) Collect(ctx context.Context) (model.SourceTally, error) {
	tally := model.SourceTally{Source: model.SourceGraphQLSearch}

	query := fmt.Sprintf("%q in:description,readme", r.toolkit)
	variables := map[string]any{"q": query}

	retried := false
	for page := 1; page <= r.maxPages; page++ {
		resp, httpResp, err := github.DoGraphQL[searchResult](ctx, r.client, github.GraphQLRequest{
			Query:     searchQuery,
			Variables: variables,
		})
		if err != nil {
			// One retry per page; a second rate-limit hit on the same
			// page fails the source rather than looping on the window.
			if delay, retryable := github.RetryDelay(httpResp, err); retryable && !retried {
				retried = true
				r.logger.Info("rate limited, backing off", "delay", delay, "page", page)
				if sleepErr := github.SleepUntilReset(ctx, delay); sleepErr != nil {
					return tally, sleepErr
				}
				page-- // Retry the same page after the window resets.
				continue
			}
			return tally, fmt.Errorf("graphql search page %d: %w", page, err)
		}
		retried = false
		if len(resp.Errors) > 0 {
			return tally, fmt.Errorf("graphql search page %d: %s", page, resp.ErrorMessages())
		}

		r.logger.Debug("graphql search page",
			"page", page,
			"items", len(resp.Data.Search.Nodes),
			"total", resp.Data.Search.RepositoryCount,
		)

		for i := range resp.Data.Search.Nodes {
			node := &resp.Data.Search.Nodes[i]
			if node.NameWithOwner == "" {
				continue
			}
			tally.Discovered++

			repo := node.toRepository()
			res, err := r.store.UpsertRepository(ctx, &repo)
			if err != nil {
				r.logger.Warn("failed to store repository", "repo", repo.FullName, "error", err)
				tally.Failed++
				continue
			}
			if res.Inserted {
				tally.New++
			} else {
				tally.Updated++
			}
		}

		if !resp.Data.Search.PageInfo.HasNextPage {
			break
		}
		variables["after"] = resp.Data.Search.PageInfo.EndCursor

		if r.delay > 0 {
			if err := github.SleepUntilReset(ctx, r.delay); err != nil {
				return tally, err
			}
		}
	}

	return tally, nil
}
