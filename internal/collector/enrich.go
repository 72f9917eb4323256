package collector

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nao1215/depwatch/internal/github"
	"github.com/nao1215/depwatch/internal/model"
	"golang.org/x/sync/errgroup"
)

// Enricher refreshes repository metadata through the REST API.
// The dependents listing only exposes names and counts, so rows from
// the scraper arrive without language or activity timestamps. One
// repository lookup per row fills in the rest.
type Enricher struct {
	// client is the shared API client.
	client *github.Client

	// store receives the refreshed rows.
	store Store

	// concurrency bounds parallel lookups.
	concurrency int

	// logger is used for progress and failure logging.
	logger *slog.Logger
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithEnrichConcurrency bounds parallel metadata lookups.
func WithEnrichConcurrency(n int) EnricherOption {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithEnrichLogger sets a custom logger.
func WithEnrichLogger(logger *slog.Logger) EnricherOption {
	return func(e *Enricher) {
		e.logger = logger
	}
}

// NewEnricher creates a metadata enricher backed by the REST API.
func NewEnricher(client *github.Client, store Store, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		client:      client,
		store:       store,
		concurrency: 4,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}

	return e
}

// Enrich looks up each repository and stores the refreshed metadata.
// Lookups run concurrently but the shared pacer keeps the overall
// request rate polite. A repository that has vanished (deleted or made
// private) counts as failed without aborting the batch; only context
// cancellation stops it early.
func (e *Enricher) Enrich(ctx context.Context, repos []model.Repository) (model.SourceTally, error) {
	tally := model.SourceTally{Source: model.SourceEnrichment}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i := range repos {
		repo := repos[i]
		g.Go(func() error {
			refreshed, err := e.lookup(ctx, &repo)

			mu.Lock()
			defer mu.Unlock()
			tally.Discovered++

			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.logger.Warn("failed to enrich repository", "repo", repo.FullName, "error", err)
				tally.Failed++
				return nil
			}

			if _, err := e.store.UpsertRepository(ctx, refreshed); err != nil {
				e.logger.Warn("failed to store enriched repository", "repo", repo.FullName, "error", err)
				tally.Failed++
				return nil
			}
			tally.Updated++
			return nil
		})
	}

	err := g.Wait()
	return tally, err
}

// lookup fetches current metadata for one repository.
func (e *Enricher) lookup(ctx context.Context, repo *model.Repository) (*model.Repository, error) {
	name, err := model.NewRepoName(repo.FullName)
	if err != nil {
		return nil, err
	}

	if err := e.client.Wait(ctx); err != nil {
		return nil, err
	}

	ghRepo, resp, err := e.client.REST.Repositories.Get(ctx, name.Owner(), name.Name())
	if err != nil {
		if delay, retryable := rateLimitDelay(resp, err); retryable {
			e.logger.Info("rate limited during enrichment, backing off", "delay", delay)
			if sleepErr := github.SleepUntilReset(ctx, delay); sleepErr != nil {
				return nil, sleepErr
			}
			ghRepo, _, err = e.client.REST.Repositories.Get(ctx, name.Owner(), name.Name())
		}
		if err != nil {
			return nil, err
		}
	}

	refreshed := repoFromGitHub(ghRepo, repo.Source)
	return &refreshed, nil
}
