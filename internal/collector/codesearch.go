package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goghub "github.com/google/go-github/v81/github"

	"github.com/nao1215/depwatch/internal/github"
	"github.com/nao1215/depwatch/internal/model"
)

// CodeSearch discovers dependents through the REST code search API.
// It issues one query per package pattern, looking for go.mod manifests
// that reference the pattern, and records the repository containing each
// match.
//
// Design decision: code search is the most precise source (an import in
// a manifest is a real dependency, unlike a README mention) but also the
// most rate-limited one, so this collector is strictly sequential with a
// delay between pages.
type CodeSearch struct {
	// client is the shared API client.
	client *github.Client

	// store receives discovered repositories.
	store Store

	// patterns are the manifest search terms, one query each.
	patterns []string

	// maxPages limits result pages fetched per pattern.
	maxPages int

	// delay is the pause between page fetches.
	delay time.Duration

	// logger is used for per-page progress logging.
	logger *slog.Logger
}

// CodeSearchOption configures a CodeSearch.
type CodeSearchOption func(*CodeSearch)

// WithCodeSearchMaxPages limits result pages fetched per pattern.
func WithCodeSearchMaxPages(n int) CodeSearchOption {
	return func(c *CodeSearch) {
		c.maxPages = n
	}
}

// WithCodeSearchDelay sets the pause between page fetches.
func WithCodeSearchDelay(d time.Duration) CodeSearchOption {
	return func(c *CodeSearch) {
		c.delay = d
	}
}

// WithCodeSearchLogger sets a custom logger.
func WithCodeSearchLogger(logger *slog.Logger) CodeSearchOption {
	return func(c *CodeSearch) {
		c.logger = logger
	}
}

// NewCodeSearch creates a code search collector for the given patterns.
func NewCodeSearch(client *github.Client, store Store, patterns []string, opts ...CodeSearchOption) *CodeSearch {
	c := &CodeSearch{
		client:   client,
		store:    store,
		patterns: patterns,
		maxPages: 10,
		delay:    2 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// Name returns the collector's name for logging.
func (c *CodeSearch) Name() string { return "rest-code-search" }

// Collect runs the code search queries and upserts every repository
// containing a match. Rate-limited pages are retried after the window
// resets; other errors abort the pattern but not the collector.
func (c *CodeSearch) Collect(ctx context.Context) (model.SourceTally, error) {
	tally := model.SourceTally{Source: model.SourceRESTSearch}

	var firstErr error
	for _, pattern := range c.patterns {
		if err := c.collectPattern(ctx, pattern, &tally); err != nil {
			if ctx.Err() != nil {
				return tally, ctx.Err()
			}
			c.logger.Warn("code search pattern failed", "pattern", pattern, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return tally, firstErr
}

// collectPattern pages through the results of one search query.
func (c *CodeSearch) collectPattern(ctx context.Context, pattern string, tally *model.SourceTally) error {
	query := fmt.Sprintf("%q in:file filename:go.mod", pattern)

	for page := 1; page <= c.maxPages; page++ {
		result, resp, err := c.searchPage(ctx, query, page)
		if err != nil {
			return fmt.Errorf("code search page %d: %w", page, err)
		}

		c.logger.Debug("code search page",
			"pattern", pattern,
			"page", page,
			"items", len(result.CodeResults),
			"total", result.GetTotal(),
		)

		for _, item := range result.CodeResults {
			if item.Repository == nil {
				continue
			}
			tally.Discovered++

			repo := repoFromGitHub(item.Repository, model.SourceRESTSearch)
			res, err := c.store.UpsertRepository(ctx, &repo)
			if err != nil {
				c.logger.Warn("failed to store repository", "repo", repo.FullName, "error", err)
				tally.Failed++
				continue
			}
			if res.Inserted {
				tally.New++
			} else {
				tally.Updated++
			}
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}

		if err := c.pause(ctx); err != nil {
			return err
		}
	}

	return nil
}

// searchPage fetches one page, waiting out rate limits.
// One retry per rate-limit hit: if the second attempt is limited again
// the window math is off and failing is more honest than looping.
func (c *CodeSearch) searchPage(ctx context.Context, query string, page int) (*goghub.CodeSearchResult, *goghub.Response, error) {
	opts := &goghub.SearchOptions{
		ListOptions: goghub.ListOptions{Page: page, PerPage: 100},
	}

	for attempt := 0; ; attempt++ {
		if err := c.client.Wait(ctx); err != nil {
			return nil, nil, err
		}

		result, resp, err := c.client.REST.Search.Code(ctx, query, opts)
		if err == nil {
			return result, resp, nil
		}

		var httpResp *goghub.Response
		if resp != nil {
			httpResp = resp
		}
		delay, retryable := rateLimitDelay(httpResp, err)
		if !retryable || attempt >= 1 {
			return nil, resp, err
		}

		c.logger.Info("rate limited, backing off", "delay", delay, "page", page)
		if err := github.SleepUntilReset(ctx, delay); err != nil {
			return nil, nil, err
		}
	}
}

// rateLimitDelay adapts github.RetryDelay to go-github response wrappers.
func rateLimitDelay(resp *goghub.Response, err error) (time.Duration, bool) {
	if resp != nil && resp.Response != nil {
		return github.RetryDelay(resp.Response, err)
	}
	return github.RetryDelay(nil, err)
}

// pause sleeps the politeness delay, honoring cancellation.
func (c *CodeSearch) pause(ctx context.Context) error {
	if c.delay <= 0 {
		return nil
	}
	return github.SleepUntilReset(ctx, c.delay)
}
