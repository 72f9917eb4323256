package collector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/depwatch/internal/github"
	"github.com/nao1215/depwatch/internal/model"
)

// maxDependentsBody caps how much of a listing page we read.
const maxDependentsBody = 5 * 1024 * 1024 // 5MB

// Dependents scrapes the web dependents listing for the toolkit.
// The listing reaches the dependency graph, which indexes go.mod files
// directly, so it finds dependents that never mention the toolkit in
// prose and are invisible to both search collectors.
//
// The page is server-rendered HTML. Rows carry the repository link and
// star/fork counts; richer metadata (language, timestamps) is filled in
// later by the enrichment stage.
type Dependents struct {
	// client provides the HTTP client and pacing.
	client *github.Client

	// store receives discovered repositories.
	store Store

	// toolkit is the "owner/name" whose dependents are listed.
	toolkit string

	// baseURL is the web (not API) host, overridable in tests.
	baseURL string

	// maxPages limits listing pages fetched per run.
	maxPages int

	// delay is the pause between page fetches.
	delay time.Duration

	// logger is used for per-page progress logging.
	logger *slog.Logger
}

// DependentsOption configures a Dependents collector.
type DependentsOption func(*Dependents)

// WithDependentsBaseURL overrides the web host. Used by tests.
func WithDependentsBaseURL(u string) DependentsOption {
	return func(d *Dependents) {
		d.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithDependentsMaxPages limits listing pages fetched per run.
func WithDependentsMaxPages(n int) DependentsOption {
	return func(d *Dependents) {
		d.maxPages = n
	}
}

// WithDependentsDelay sets the pause between page fetches.
func WithDependentsDelay(delay time.Duration) DependentsOption {
	return func(d *Dependents) {
		d.delay = delay
	}
}

// WithDependentsLogger sets a custom logger.
func WithDependentsLogger(logger *slog.Logger) DependentsOption {
	return func(d *Dependents) {
		d.logger = logger
	}
}

// NewDependents creates a dependents listing collector for the toolkit.
func NewDependents(client *github.Client, store Store, toolkit string, opts ...DependentsOption) *Dependents {
	d := &Dependents{
		client:   client,
		store:    store,
		toolkit:  toolkit,
		baseURL:  "https://github.com",
		maxPages: 10,
		delay:    2 * time.Second,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		d.logger = slog.Default()
	}

	return d
}

// Name returns the collector's name for logging.
func (d *Dependents) Name() string { return "dependents-page" }

// Collect walks the paginated listing, following "Next" cursor links
// until the listing ends, maxPages is hit, or a page repeats.
func (d *Dependents) Collect(ctx context.Context) (model.SourceTally, error) {
	tally := model.SourceTally{Source: model.SourceDependentsPage}

	pageURL := fmt.Sprintf("%s/%s/network/dependents", d.baseURL, d.toolkit)

	// Guard against pagination cycles: a buggy or throttled listing can
	// hand back a cursor we have already followed.
	visited := make(map[string]bool)

	for page := 1; page <= d.maxPages; page++ {
		if visited[pageURL] {
			d.logger.Warn("pagination cycle detected, stopping", "url", pageURL)
			break
		}
		visited[pageURL] = true

		doc, err := d.fetchPage(ctx, pageURL)
		if err != nil {
			return tally, fmt.Errorf("dependents page %d: %w", page, err)
		}

		rows, malformed := d.parseRows(doc)
		d.logger.Debug("dependents page", "page", page, "rows", len(rows), "malformed", malformed)

		// Malformed rows are still dependents the listing showed us; a
		// run that drops them should not look clean.
		tally.Discovered += malformed
		tally.Failed += malformed

		for _, row := range rows {
			tally.Discovered++

			repo := row
			if err := d.upsert(ctx, &repo, &tally); err != nil {
				d.logger.Warn("failed to store repository", "repo", repo.FullName, "error", err)
			}
		}

		next := nextPageURL(doc, d.baseURL)
		if next == "" {
			break
		}
		pageURL = next

		if d.delay > 0 {
			if err := github.SleepUntilReset(ctx, d.delay); err != nil {
				return tally, err
			}
		}
	}

	return tally, nil
}

// upsert stores one row and updates the tally.
func (d *Dependents) upsert(ctx context.Context, repo *model.Repository, tally *model.SourceTally) error {
	res, err := d.store.UpsertRepository(ctx, repo)
	if err != nil {
		tally.Failed++
		return err
	}
	if res.Inserted {
		tally.New++
	} else {
		tally.Updated++
	}
	return nil
}

// fetchPage downloads and parses one listing page, backing off and
// retrying once when the host throttles us.
func (d *Dependents) fetchPage(ctx context.Context, pageURL string) (*goquery.Document, error) {
	for attempt := 0; ; attempt++ {
		doc, resp, err := d.get(ctx, pageURL)
		if err == nil {
			return doc, nil
		}

		delay, retryable := github.RetryDelay(resp, err)
		if !retryable || attempt > 0 {
			return nil, err
		}

		d.logger.Info("throttled by listing page, backing off", "delay", delay, "url", pageURL)
		if sleepErr := github.SleepUntilReset(ctx, delay); sleepErr != nil {
			return nil, sleepErr
		}
	}
}

// get performs a single page fetch. The response is returned alongside
// errors so the caller can inspect throttling headers.
func (d *Dependents) get(ctx context.Context, pageURL string) (*goquery.Document, *http.Response, error) {
	if err := d.client.Wait(ctx); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := d.client.HTTP.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // fetch result already captured

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDependentsBody))
		return nil, resp, fmt.Errorf("unexpected status %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxDependentsBody))
	if err != nil {
		return nil, resp, fmt.Errorf("parse listing html: %w", err)
	}
	return doc, resp, nil
}

// parseRows extracts repository rows from a listing document. Rows
// whose link does not parse as a repository name are skipped and
// reported in malformed so the caller can count them as failures.
func (d *Dependents) parseRows(doc *goquery.Document) (repos []model.Repository, malformed int) {
	doc.Find("div.Box-row").Each(func(_ int, row *goquery.Selection) {
		link := row.Find(`a[data-hovercard-type="repository"]`).First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}

		name, err := model.NewRepoName(href)
		if err != nil {
			d.logger.Debug("skipping malformed dependent row", "href", href)
			malformed++
			return
		}

		repo := model.Repository{
			FullName: name.String(),
			Source:   model.SourceDependentsPage,
		}
		if err := repo.Normalize(); err != nil {
			d.logger.Debug("skipping malformed dependent row", "href", href, "error", err)
			malformed++
			return
		}

		// Star and fork counts sit in trailing spans, highest first.
		counts := parseRowCounts(row)
		if len(counts) > 0 {
			repo.Stars = counts[0]
		}
		if len(counts) > 1 {
			repo.Forks = counts[1]
		}

		repos = append(repos, repo)
	})

	return repos, malformed
}

// parseRowCounts pulls the numeric span values out of a listing row.
func parseRowCounts(row *goquery.Selection) []int {
	var counts []int
	row.Find("span.color-fg-muted").Each(func(_ int, sel *goquery.Selection) {
		if n, ok := parseCount(sel.Text()); ok {
			counts = append(counts, n)
		}
	})
	return counts
}

// parseCount parses a human-formatted count such as "1,234".
func parseCount(s string) (int, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// nextPageURL finds the "Next" pagination link, if any.
func nextPageURL(doc *goquery.Document, baseURL string) string {
	var next string
	doc.Find("div.paginate-container a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.TrimSpace(sel.Text()) != "Next" {
			return true
		}
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return true
		}
		if strings.HasPrefix(href, "/") {
			next = baseURL + href
		} else {
			next = href
		}
		return false
	})
	return next
}
