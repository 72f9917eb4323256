package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/depwatch/internal/config"
	"github.com/nao1215/depwatch/internal/model"
	"github.com/nao1215/depwatch/internal/report"
)

// TestNewCollectCmd tests the collect command creation.
func TestNewCollectCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCollectCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "collect" {
			t.Errorf("expected use 'collect', got %q", cmd.Use)
		}
	})

	t.Run("has expected flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{
			"toolkit", "pattern", "api-url", "token", "timeout", "max-pages",
			"delay", "enrich-concurrency", "no-rest-search", "no-graphql-search",
			"no-dependents", "config", "json", "markdown", "output",
		} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected %s flag", name)
			}
		}
	})
}

// TestBuildConfig tests flag and config file handling.
func TestBuildConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cmd := NewCollectCmd()
		if err := cmd.ParseFlags(nil); err != nil {
			t.Fatal(err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig() error: %v", err)
		}
		if cfg.Toolkit != config.DefaultToolkit {
			t.Errorf("Toolkit = %q, want default %q", cfg.Toolkit, config.DefaultToolkit)
		}
		if !cfg.EnableRESTSearch || !cfg.EnableGraphQLSearch || !cfg.EnableDependents {
			t.Error("all collectors should be enabled by default")
		}
		want := []string{"github.com/" + config.DefaultToolkit}
		if len(cfg.PackagePatterns) != 1 || cfg.PackagePatterns[0] != want[0] {
			t.Errorf("PackagePatterns = %v, want %v", cfg.PackagePatterns, want)
		}
	})

	t.Run("flags override defaults", func(t *testing.T) {
		cmd := NewCollectCmd()
		args := []string{
			"--toolkit", "acme/widgets",
			"--max-pages", "3",
			"--delay", "500ms",
			"--no-dependents",
		}
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatal(err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig() error: %v", err)
		}
		if cfg.Toolkit != "acme/widgets" {
			t.Errorf("Toolkit = %q", cfg.Toolkit)
		}
		if cfg.MaxPages != 3 {
			t.Errorf("MaxPages = %d, want 3", cfg.MaxPages)
		}
		if cfg.RequestDelay != 500*time.Millisecond {
			t.Errorf("RequestDelay = %s, want 500ms", cfg.RequestDelay)
		}
		if cfg.EnableDependents {
			t.Error("--no-dependents should disable the scraper")
		}
		if cfg.PackagePatterns[0] != "github.com/acme/widgets" {
			t.Errorf("PackagePatterns = %v", cfg.PackagePatterns)
		}
	})

	t.Run("config file applies under flags", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "depwatch.yaml")
		content := `toolkit: acme/widgets
maxPages: 7
requestDelay: 3s
collectors:
  graphqlSearch: false
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cmd := NewCollectCmd()
		if err := cmd.ParseFlags([]string{"--config", path, "--max-pages", "2"}); err != nil {
			t.Fatal(err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig() error: %v", err)
		}
		if cfg.Toolkit != "acme/widgets" {
			t.Errorf("Toolkit = %q, want file value", cfg.Toolkit)
		}
		if cfg.MaxPages != 2 {
			t.Errorf("MaxPages = %d, want flag value 2", cfg.MaxPages)
		}
		if cfg.RequestDelay != 3*time.Second {
			t.Errorf("RequestDelay = %s, want file value 3s", cfg.RequestDelay)
		}
		if cfg.EnableGraphQLSearch {
			t.Error("file should disable the GraphQL collector")
		}
	})

	t.Run("explicit missing config file errors", func(t *testing.T) {
		cmd := NewCollectCmd()
		if err := cmd.ParseFlags([]string{"--config", "/does/not/exist.yaml"}); err != nil {
			t.Fatal(err)
		}

		if _, err := buildConfig(cmd); err == nil {
			t.Fatal("expected an error for explicit missing config file")
		}
	})

	t.Run("conflicting report formats fail validation", func(t *testing.T) {
		cmd := NewCollectCmd()
		if err := cmd.ParseFlags([]string{"--json", "--markdown"}); err != nil {
			t.Fatal(err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig() error: %v", err)
		}
		if err := cfg.Validate(); !errors.Is(err, config.ErrConflictingReportFormats) {
			t.Errorf("Validate() = %v, want ErrConflictingReportFormats", err)
		}
	})

	t.Run("disabling every collector fails validation", func(t *testing.T) {
		cmd := NewCollectCmd()
		args := []string{"--no-rest-search", "--no-graphql-search", "--no-dependents"}
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatal(err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig() error: %v", err)
		}
		if err := cfg.Validate(); !errors.Is(err, config.ErrNoCollectors) {
			t.Errorf("Validate() = %v, want ErrNoCollectors", err)
		}
	})
}

// TestOutputReport tests report writing to a file.
func TestOutputReport(t *testing.T) {
	run := &model.RunSummary{
		RunID:      "test-run",
		Toolkit:    "acme/widgets",
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
		Tallies: []model.SourceTally{
			{Source: model.SourceRESTSearch, Discovered: 5, New: 5},
		},
	}

	t.Run("writes markdown report file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "report.md")

		cfg := config.NewConfig()
		cfg.MarkdownReport = true
		cfg.ReportFile = path

		if err := outputReport(cfg, &report.Report{Run: run}); err != nil {
			t.Fatalf("outputReport() error: %v", err)
		}

		data, err := os.ReadFile(path) //nolint:gosec // Test-controlled path
		if err != nil {
			t.Fatalf("report file not written: %v", err)
		}
		if !strings.Contains(string(data), "# Dependents Collection Report") {
			t.Error("report file missing markdown title")
		}
	})

	t.Run("writes json report file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "report.json")

		cfg := config.NewConfig()
		cfg.JSONReport = true
		cfg.ReportFile = path

		if err := outputReport(cfg, &report.Report{Run: run}); err != nil {
			t.Fatalf("outputReport() error: %v", err)
		}

		data, err := os.ReadFile(path) //nolint:gosec // Test-controlled path
		if err != nil {
			t.Fatalf("report file not written: %v", err)
		}
		if !strings.Contains(string(data), `"run_id": "test-run"`) {
			t.Errorf("report file content unexpected:\n%s", data)
		}
	})
}
