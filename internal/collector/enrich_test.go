package collector

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/nao1215/depwatch/internal/model"
)

func TestEnricherEnrich(t *testing.T) {
	t.Parallel()

	t.Run("refreshes metadata while keeping the discovery source", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/api/v3/repos/alice/webapp", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{
				"full_name": "alice/webapp",
				"name": "webapp",
				"owner": {"login": "alice"},
				"html_url": "https://github.com/alice/webapp",
				"description": "renders markdown reports",
				"stargazers_count": 1300,
				"forks_count": 60,
				"language": "Go",
				"archived": false,
				"fork": false,
				"pushed_at": "2026-08-20T10:00:00Z",
				"created_at": "2024-01-15T09:30:00Z"
			}`)
		})
		mux.HandleFunc("/api/v3/repos/bob/gone", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		})

		store := newMemStore()
		enricher := NewEnricher(newRESTClient(t, mux), store, WithEnrichConcurrency(2))

		tally, err := enricher.Enrich(context.Background(), []model.Repository{
			{FullName: "alice/webapp", Stars: 1234, Source: model.SourceDependentsPage},
			{FullName: "bob/gone", Source: model.SourceDependentsPage},
		})
		if err != nil {
			t.Fatalf("Enrich() error: %v", err)
		}
		if tally.Source != model.SourceEnrichment {
			t.Errorf("tally.Source = %q, want %q", tally.Source, model.SourceEnrichment)
		}
		if tally.Discovered != 2 || tally.Updated != 1 || tally.Failed != 1 {
			t.Errorf("tally = %+v, want 2 discovered, 1 updated, 1 failed", tally)
		}

		repo, ok := store.get("alice/webapp")
		if !ok {
			t.Fatal("alice/webapp not stored")
		}
		if repo.Stars != 1300 {
			t.Errorf("Stars = %d, want refreshed 1300", repo.Stars)
		}
		if repo.Language != "Go" {
			t.Errorf("Language = %q, want Go", repo.Language)
		}
		if repo.PushedAt.IsZero() {
			t.Error("PushedAt not refreshed")
		}
		if repo.Source != model.SourceDependentsPage {
			t.Errorf("Source = %q, want the original discovery source", repo.Source)
		}
	})

	t.Run("invalid names count as failed", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		enricher := NewEnricher(newRESTClient(t, http.NewServeMux()), store)

		tally, err := enricher.Enrich(context.Background(), []model.Repository{
			{FullName: "not-a-repo"},
		})
		if err != nil {
			t.Fatalf("Enrich() error: %v", err)
		}
		if tally.Failed != 1 {
			t.Errorf("Failed = %d, want 1", tally.Failed)
		}
	})

	t.Run("cancellation stops the batch", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		enricher := NewEnricher(newRESTClient(t, http.NewServeMux()), newMemStore())
		if _, err := enricher.Enrich(ctx, []model.Repository{{FullName: "alice/webapp"}}); err == nil {
			t.Fatal("expected a cancellation error")
		}
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		t.Parallel()

		enricher := NewEnricher(newRESTClient(t, http.NewServeMux()), newMemStore())
		tally, err := enricher.Enrich(context.Background(), nil)
		if err != nil {
			t.Fatalf("Enrich() error: %v", err)
		}
		if tally.Discovered != 0 {
			t.Errorf("Discovered = %d, want 0", tally.Discovered)
		}
	})
}
