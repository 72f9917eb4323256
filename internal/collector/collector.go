package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/depwatch/internal/database"
	"github.com/nao1215/depwatch/internal/model"
)

// Store is the slice of the database the collectors write through.
// Narrowing the dependency to one method keeps collectors testable with
// an in-memory fake.
type Store interface {
	// UpsertRepository inserts or refreshes a repository row.
	UpsertRepository(ctx context.Context, repo *model.Repository) (database.UpsertResult, error)
}

// Collector discovers dependent repositories from one source.
// Collectors are executed in sequence, each upserting its candidates
// through the shared Store and reporting a tally.
//
// Design decision: We use an interface rather than function types because:
//  1. It allows collectors to carry configuration state
//  2. It provides a Name() method for logging and debugging
//  3. New sources slot in without touching the Runner
type Collector interface {
	// Collect discovers repositories and upserts them through the Store.
	// It returns the tally of what it saw. A non-nil error means the
	// source failed as a whole; partial counts are still valid.
	Collect(ctx context.Context) (model.SourceTally, error)

	// Name returns the collector's name for logging purposes.
	Name() string
}

// RunnerStore is the database surface the Runner itself needs, beyond
// what it hands to individual collectors.
type RunnerStore interface {
	Store
	// ForEachRepository streams stored repositories for the enrichment scan.
	ForEachRepository(ctx context.Context, opts database.ListOptions, fn func(*model.Repository) error) error
	// InsertRun stores the finished run summary.
	InsertRun(ctx context.Context, run *model.RunSummary) error
}

// Runner orchestrates a collection run: collectors in order, then the
// enrichment stage, then run summary persistence.
type Runner struct {
	// store is the database the run writes to.
	store RunnerStore

	// collectors holds the ordered list of collectors to execute.
	collectors []Collector

	// enricher refreshes scrape-discovered rows. Nil disables enrichment.
	enricher *Enricher

	// toolkit is recorded on the run summary.
	toolkit string

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing
	// collectors after one fails.
	continueOnError bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets a custom logger for the runner.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithEnricher attaches the enrichment stage.
func WithEnricher(e *Enricher) RunnerOption {
	return func(r *Runner) {
		r.enricher = e
	}
}

// WithContinueOnError configures the runner to keep executing collectors
// even when one fails. Failed collectors are logged and recorded in the
// run summary, but subsequent collectors still execute.
//
// Design decision: This defaults to true because the sources are
// independent; a broken dependents page should not stop API search
// results from landing. The first failure is still surfaced on the
// summary so operators notice it.
func WithContinueOnError(continueOnError bool) RunnerOption {
	return func(r *Runner) {
		r.continueOnError = continueOnError
	}
}

// NewRunner creates a Runner writing to store.
// Collectors are added with AddCollector and run in insertion order.
func NewRunner(store RunnerStore, toolkit string, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:           store,
		toolkit:         toolkit,
		continueOnError: true,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// AddCollector appends a collector to the run.
func (r *Runner) AddCollector(c Collector) {
	r.collectors = append(r.collectors, c)
}

// CollectorNames returns the names of all collectors in execution order.
func (r *Runner) CollectorNames() []string {
	names := make([]string, len(r.collectors))
	for i, c := range r.collectors {
		names[i] = c.Name()
	}
	return names
}

// Run executes the collection run and returns its summary.
// The summary is persisted through the store before returning, even
// when a collector failed, so partial runs show up in history.
func (r *Runner) Run(ctx context.Context) (*model.RunSummary, error) {
	summary := &model.RunSummary{
		RunID:     uuid.NewString(),
		Toolkit:   r.toolkit,
		StartedAt: time.Now().UTC(),
	}

	var runErr error
	for _, c := range r.collectors {
		select {
		case <-ctx.Done():
			summary.Error = ctx.Err().Error()
			runErr = ctx.Err()
		default:
		}
		if runErr != nil && !r.continueOnError {
			break
		}

		r.logger.Info("running collector", "collector", c.Name(), "toolkit", r.toolkit)

		tally, err := c.Collect(ctx)
		summary.Tallies = append(summary.Tallies, tally)

		if err != nil {
			r.logger.Error("collector failed",
				"collector", c.Name(),
				"toolkit", r.toolkit,
				"error", err,
			)
			if summary.Error == "" {
				summary.Error = err.Error()
			}
			if runErr == nil {
				runErr = err
			}
			if !r.continueOnError {
				break
			}
			continue
		}

		r.logger.Info("collector finished",
			"collector", c.Name(),
			"discovered", tally.Discovered,
			"new", tally.New,
			"updated", tally.Updated,
			"failed", tally.Failed,
		)
	}

	if r.enricher != nil && (runErr == nil || r.continueOnError) {
		if err := r.runEnrichment(ctx, summary); err != nil {
			r.logger.Error("enrichment failed", "error", err)
			if summary.Error == "" {
				summary.Error = err.Error()
			}
			if runErr == nil {
				runErr = err
			}
		}
	}

	summary.FinishedAt = time.Now().UTC()

	if err := r.store.InsertRun(ctx, summary); err != nil {
		r.logger.Error("failed to persist run summary", "run_id", summary.RunID, "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	return summary, runErr
}

// runEnrichment scans for rows that only the scraper has seen (no
// language, no push timestamp) and refreshes them via the REST API.
func (r *Runner) runEnrichment(ctx context.Context, summary *model.RunSummary) error {
	var candidates []model.Repository
	err := r.store.ForEachRepository(ctx, database.ListOptions{Sort: database.SortByUpdated}, func(repo *model.Repository) error {
		if repo.Language == "" && repo.PushedAt.IsZero() {
			candidates = append(candidates, *repo)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	r.logger.Info("enriching repositories", "candidates", len(candidates))

	tally, err := r.enricher.Enrich(ctx, candidates)
	summary.Tallies = append(summary.Tallies, tally)
	return err
}
