package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/depwatch/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *DependentsDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// seedRepo stores a repository with the given attributes.
func seedRepo(t *testing.T, db *DependentsDB, fullName string, stars int, language, description string, source model.Source) {
	t.Helper()

	repo := &model.Repository{
		FullName:    fullName,
		Stars:       stars,
		Language:    language,
		Description: description,
		Source:      source,
	}
	if _, err := db.UpsertRepository(context.Background(), repo); err != nil {
		t.Fatalf("failed to seed %s: %v", fullName, err)
	}
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, "depwatch.db")); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
	})

	t.Run("CreateIfNotExists=false fails for missing database", func(t *testing.T) {
		t.Parallel()

		_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
		if err == nil {
			t.Error("expected error for missing database")
		}
	})
}

// TestUpsertRepository tests insert and refresh semantics.
func TestUpsertRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("insert then update", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)

		repo := &model.Repository{
			FullName: "spf13/cobra",
			Stars:    100,
			Source:   model.SourceDependentsPage,
		}

		res, err := db.UpsertRepository(ctx, repo)
		if err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		if !res.Inserted {
			t.Error("first upsert should report Inserted")
		}

		// Rediscovered by another collector with fresher metadata.
		res, err = db.UpsertRepository(ctx, &model.Repository{
			FullName:    "spf13/cobra",
			Stars:       250,
			Description: "A Commander for modern Go CLI interactions",
			Language:    "Go",
			Source:      model.SourceRESTSearch,
		})
		if err != nil {
			t.Fatalf("second upsert failed: %v", err)
		}
		if res.Inserted {
			t.Error("second upsert should report update, not insert")
		}

		got, err := db.GetRepository(ctx, "spf13/cobra")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got == nil {
			t.Fatal("repository not found after upsert")
		}
		if got.Stars != 250 {
			t.Errorf("Stars = %d, want 250 (metadata should refresh)", got.Stars)
		}
		if got.Source != model.SourceDependentsPage {
			t.Errorf("Source = %q, want original %q (discovery fields are sticky)", got.Source, model.SourceDependentsPage)
		}
		if got.HTMLURL != "https://github.com/spf13/cobra" {
			t.Errorf("HTMLURL = %q", got.HTMLURL)
		}
	})

	t.Run("zero pushed_at keeps prior value", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)

		pushed := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
		_, err := db.UpsertRepository(ctx, &model.Repository{
			FullName: "nao1215/sqly",
			PushedAt: pushed,
			Source:   model.SourceRESTSearch,
		})
		if err != nil {
			t.Fatalf("upsert failed: %v", err)
		}

		// Scrape-only rediscovery carries no pushed_at.
		_, err = db.UpsertRepository(ctx, &model.Repository{
			FullName: "nao1215/sqly",
			Stars:    10,
			Source:   model.SourceDependentsPage,
		})
		if err != nil {
			t.Fatalf("second upsert failed: %v", err)
		}

		got, err := db.GetRepository(ctx, "nao1215/sqly")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if !got.PushedAt.Equal(pushed) {
			t.Errorf("PushedAt = %v, want %v", got.PushedAt, pushed)
		}
	})

	t.Run("invalid full name rejected", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)

		_, err := db.UpsertRepository(ctx, &model.Repository{FullName: "not-a-repo", Source: model.SourceManual})
		if err == nil {
			t.Error("expected error for invalid full name")
		}
	})

	t.Run("invalid source rejected", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)

		_, err := db.UpsertRepository(ctx, &model.Repository{FullName: "a/b", Source: "browser"})
		if err == nil {
			t.Error("expected error for invalid source")
		}
	})
}

// TestGetRepository_NotFound tests the nil-for-missing contract.
func TestGetRepository_NotFound(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	got, err := db.GetRepository(context.Background(), "no/such")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing repository, got %+v", got)
	}
}

// TestListRepositories tests pagination, sorting, and search.
func TestListRepositories(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	seedRepo(t, db, "alpha/one", 50, "Go", "terminal UI widgets", model.SourceRESTSearch)
	seedRepo(t, db, "bravo/two", 300, "Go", "markdown renderer", model.SourceDependentsPage)
	seedRepo(t, db, "charlie/three", 10, "Rust", "docs generator using markdown", model.SourceGraphQLSearch)
	seedRepo(t, db, "delta/four", 120, "", "", model.SourceDependentsPage)

	t.Run("default sort is stars descending", func(t *testing.T) {
		repos, total, err := db.ListRepositories(ctx, ListOptions{})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if total != 4 {
			t.Errorf("total = %d, want 4", total)
		}
		if len(repos) != 4 {
			t.Fatalf("len = %d, want 4", len(repos))
		}
		if repos[0].FullName != "bravo/two" || repos[3].FullName != "charlie/three" {
			t.Errorf("unexpected order: %s ... %s", repos[0].FullName, repos[3].FullName)
		}
	})

	t.Run("pagination clamps and pages", func(t *testing.T) {
		repos, total, err := db.ListRepositories(ctx, ListOptions{Page: 2, PerPage: 3, Sort: SortByStars, Descending: true})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if total != 4 {
			t.Errorf("total = %d, want 4", total)
		}
		if len(repos) != 1 {
			t.Fatalf("len = %d, want 1", len(repos))
		}
		if repos[0].FullName != "charlie/three" {
			t.Errorf("page 2 first = %s, want charlie/three", repos[0].FullName)
		}

		// Page below 1 is clamped to 1.
		repos, _, err = db.ListRepositories(ctx, ListOptions{Page: -5, PerPage: 2})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(repos) != 2 || repos[0].FullName != "bravo/two" {
			t.Errorf("clamped page unexpected result: %+v", repos)
		}
	})

	t.Run("sort by name ascending", func(t *testing.T) {
		repos, _, err := db.ListRepositories(ctx, ListOptions{Sort: SortByName})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if repos[0].FullName != "alpha/one" {
			t.Errorf("first = %s, want alpha/one", repos[0].FullName)
		}
	})

	t.Run("unknown sort falls back to stars", func(t *testing.T) {
		repos, _, err := db.ListRepositories(ctx, ListOptions{Sort: SortKey("stars; DROP TABLE repositories")})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if repos[0].FullName != "bravo/two" {
			t.Errorf("first = %s, want bravo/two", repos[0].FullName)
		}

		// Table must be intact.
		if count, err := db.CountRepositories(ctx); err != nil || count != 4 {
			t.Errorf("count after hostile sort = %d, %v", count, err)
		}
	})

	t.Run("search matches name and description", func(t *testing.T) {
		repos, total, err := db.ListRepositories(ctx, ListOptions{Search: "markdown"})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if total != 2 || len(repos) != 2 {
			t.Fatalf("total = %d, len = %d, want 2", total, len(repos))
		}
	})

	t.Run("search escapes LIKE metacharacters", func(t *testing.T) {
		_, total, err := db.ListRepositories(ctx, ListOptions{Search: "100%"})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if total != 0 {
			t.Errorf("total = %d, want 0 (literal %% must not act as wildcard)", total)
		}
	})
}

// TestForEachRepository tests the streaming iteration used by CSV export.
func TestForEachRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	for i := range 5 {
		seedRepo(t, db, fmt.Sprintf("owner/repo%d", i), i*10, "Go", "", model.SourceRESTSearch)
	}

	var seen []string
	err := db.ForEachRepository(ctx, ListOptions{Sort: SortByStars, Descending: true}, func(r *model.Repository) error {
		seen = append(seen, r.FullName)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachRepository failed: %v", err)
	}
	if len(seen) != 5 {
		t.Fatalf("len = %d, want 5", len(seen))
	}
	if seen[0] != "owner/repo4" {
		t.Errorf("first = %s, want owner/repo4", seen[0])
	}

	// Callback errors stop iteration and propagate.
	stop := fmt.Errorf("stop here")
	count := 0
	err = db.ForEachRepository(ctx, ListOptions{}, func(_ *model.Repository) error {
		count++
		return stop
	})
	if err != stop {
		t.Errorf("error = %v, want stop sentinel", err)
	}
	if count != 1 {
		t.Errorf("callback ran %d times, want 1", count)
	}
}

// TestStats tests aggregate statistics.
func TestStats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	seedRepo(t, db, "a/one", 100, "Go", "", model.SourceRESTSearch)
	seedRepo(t, db, "b/two", 50, "Go", "", model.SourceDependentsPage)
	seedRepo(t, db, "c/three", 25, "Rust", "", model.SourceDependentsPage)
	seedRepo(t, db, "d/four", 0, "", "", model.SourceManual)

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}

	if stats.TotalRepositories != 4 {
		t.Errorf("TotalRepositories = %d, want 4", stats.TotalRepositories)
	}
	if stats.TotalStars != 175 {
		t.Errorf("TotalStars = %d, want 175", stats.TotalStars)
	}
	if stats.NewLastWeek != 4 {
		t.Errorf("NewLastWeek = %d, want 4 (all just discovered)", stats.NewLastWeek)
	}

	if len(stats.Languages) != 3 {
		t.Fatalf("Languages = %+v, want 3 entries", stats.Languages)
	}
	if stats.Languages[0].Language != "Go" || stats.Languages[0].Count != 2 {
		t.Errorf("top language = %+v, want Go:2", stats.Languages[0])
	}

	found := false
	for _, lc := range stats.Languages {
		if lc.Language == "(none)" && lc.Count == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("missing (none) language bucket: %+v", stats.Languages)
	}

	if len(stats.Sources) != 3 {
		t.Fatalf("Sources = %+v, want 3 entries", stats.Sources)
	}
	if stats.Sources[0].Source != model.SourceDependentsPage || stats.Sources[0].Count != 2 {
		t.Errorf("top source = %+v, want dependents-page:2", stats.Sources[0])
	}
}

// TestRuns tests collection run persistence.
func TestRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := range 3 {
		run := &model.RunSummary{
			RunID:      fmt.Sprintf("run-%d", i),
			Toolkit:    "nao1215/markdown",
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: base.Add(time.Duration(i)*time.Hour + 5*time.Minute),
			Tallies: []model.SourceTally{
				{Source: model.SourceRESTSearch, Discovered: 10 + i, New: i},
			},
		}
		if err := db.InsertRun(ctx, run); err != nil {
			t.Fatalf("insert run failed: %v", err)
		}
	}

	runs, err := db.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list runs failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len = %d, want 2", len(runs))
	}
	if runs[0].RunID != "run-2" {
		t.Errorf("newest run = %s, want run-2", runs[0].RunID)
	}
	if len(runs[0].Tallies) != 1 || runs[0].Tallies[0].Discovered != 12 {
		t.Errorf("tallies not round-tripped: %+v", runs[0].Tallies)
	}
	if runs[0].Duration() != 5*time.Minute {
		t.Errorf("Duration = %v, want 5m", runs[0].Duration())
	}
}
