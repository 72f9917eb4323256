package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/depwatch/internal/collector"
	"github.com/nao1215/depwatch/internal/config"
	"github.com/nao1215/depwatch/internal/database"
	"github.com/nao1215/depwatch/internal/github"
	"github.com/nao1215/depwatch/internal/report"
)

// NewCollectCmd creates the collect command.
func NewCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Discover dependent repositories and store their metadata",
		Long: `Collect runs the discovery sources against the configured toolkit and
stores every dependent repository it finds in the local database.

Three sources run in order:
- Code search over go.mod manifests (REST API)
- Repository search over descriptions and READMEs (GraphQL API)
- The dependents listing page (HTML)

Repositories found only on the listing page carry no metadata beyond
star and fork counts; an enrichment pass refreshes them through the
REST API afterwards.

An API token raises the rate limits considerably. The token is taken
from --token, the GITHUB_TOKEN environment variable, or the gh CLI, in
that order. Collection works without a token, just slowly.

Examples:
  # Collect dependents of the configured toolkit
  depwatch collect

  # Track a different toolkit
  depwatch collect --toolkit nao1215/markdown

  # Skip the scraper and only use the search APIs
  depwatch collect --no-dependents

  # Write a Markdown report of the run
  depwatch collect --markdown -o report.md`,
		Args: cobra.NoArgs,
		RunE: runCollectCmd,
	}

	cmd.Flags().StringP("toolkit", "k", "",
		"Toolkit to track as owner/name (default: "+config.DefaultToolkit+")")
	cmd.Flags().StringSliceP("pattern", "P", nil,
		"Manifest search pattern for code search (repeatable; default: module path of the toolkit)")
	cmd.Flags().String("api-url", "",
		"API base URL for GitHub Enterprise (e.g. https://ghe.example.com/api/v3/)")
	cmd.Flags().String("token", "",
		"API token (default: GITHUB_TOKEN, then gh CLI)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"HTTP timeout for each request")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum result pages per source per run")
	cmd.Flags().Duration("delay", config.DefaultRequestDelay,
		"Pause between successive requests to the same source")
	cmd.Flags().Int("enrich-concurrency", config.DefaultEnrichConcurrency,
		"Concurrent metadata lookups during enrichment (0 disables enrichment)")

	// Source toggles
	cmd.Flags().Bool("no-rest-search", false, "Disable the code search source")
	cmd.Flags().Bool("no-graphql-search", false, "Disable the GraphQL search source")
	cmd.Flags().Bool("no-dependents", false, "Disable the dependents listing source")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .depwatch in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runCollectCmd executes the collect command.
func runCollectCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	return runCollect(ctx, cfg, logger)
}

// buildConfig creates a Config from cobra command flags and the
// configuration file. File settings apply first, then flags the user
// actually set, so flags always win.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// If the user explicitly specified a config file path, error if not
	// found. If no path was specified, a missing file is fine.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		if err := file.Apply(cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if cmd.Flags().Changed("toolkit") {
		if cfg.Toolkit, err = cmd.Flags().GetString("toolkit"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("pattern") {
		if cfg.PackagePatterns, err = cmd.Flags().GetStringSlice("pattern"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("api-url") {
		if cfg.APIBaseURL, err = cmd.Flags().GetString("api-url"); err != nil {
			return nil, err
		}
	}
	if cfg.Token, err = cmd.Flags().GetString("token"); err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("timeout") {
		if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("max-pages") {
		if cfg.MaxPages, err = cmd.Flags().GetInt("max-pages"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("delay") {
		if cfg.RequestDelay, err = cmd.Flags().GetDuration("delay"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("enrich-concurrency") {
		if cfg.EnrichConcurrency, err = cmd.Flags().GetInt("enrich-concurrency"); err != nil {
			return nil, err
		}
	}

	for flag, target := range map[string]*bool{
		"no-rest-search":    &cfg.EnableRESTSearch,
		"no-graphql-search": &cfg.EnableGraphQLSearch,
		"no-dependents":     &cfg.EnableDependents,
	} {
		if cmd.Flags().Changed(flag) {
			disabled, err := cmd.Flags().GetBool(flag)
			if err != nil {
				return nil, err
			}
			*target = !disabled
		}
	}

	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	// Default code search pattern: the toolkit's module path as it
	// appears in go.mod files.
	if len(cfg.PackagePatterns) == 0 {
		cfg.PackagePatterns = []string{"github.com/" + cfg.Toolkit}
	}

	return cfg, nil
}

// newGitHubClient builds the shared API client from the configuration.
func newGitHubClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*github.Client, error) {
	token, source, err := github.ResolveToken(ctx, cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve API token: %w", err)
	}
	if token == "" {
		logger.Warn("no API token found; unauthenticated rate limits apply")
	} else {
		logger.Info("API token resolved", "source", source)
	}

	opts := []github.Option{
		github.WithTimeout(cfg.Timeout),
		github.WithRequestLogging(logger),
	}
	if cfg.APIBaseURL != "" && cfg.APIBaseURL != config.DefaultAPIBaseURL {
		opts = append(opts, github.WithBaseURL(cfg.APIBaseURL))
	}
	if cfg.RequestDelay > 0 {
		opts = append(opts, github.WithPacing(float64(1)/cfg.RequestDelay.Seconds(), 1))
	}

	return github.NewClient(token, opts...)
}

// runCollect executes the collection run.
func runCollect(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Info("database opened", "path", db.Path())

	client, err := newGitHubClient(ctx, cfg, logger)
	if err != nil {
		return err
	}

	runnerOpts := []collector.RunnerOption{collector.WithLogger(logger)}
	if cfg.EnrichConcurrency > 0 {
		enricher := collector.NewEnricher(client, db,
			collector.WithEnrichConcurrency(cfg.EnrichConcurrency),
			collector.WithEnrichLogger(logger),
		)
		runnerOpts = append(runnerOpts, collector.WithEnricher(enricher))
	}

	runner := collector.NewRunner(db, cfg.Toolkit, runnerOpts...)

	if cfg.EnableRESTSearch {
		runner.AddCollector(collector.NewCodeSearch(client, db, cfg.PackagePatterns,
			collector.WithCodeSearchMaxPages(cfg.MaxPages),
			collector.WithCodeSearchDelay(cfg.RequestDelay),
			collector.WithCodeSearchLogger(logger),
		))
	}
	if cfg.EnableGraphQLSearch {
		runner.AddCollector(collector.NewRepoSearch(client, db, cfg.Toolkit,
			collector.WithRepoSearchMaxPages(cfg.MaxPages),
			collector.WithRepoSearchDelay(cfg.RequestDelay),
			collector.WithRepoSearchLogger(logger),
		))
	}
	if cfg.EnableDependents {
		runner.AddCollector(collector.NewDependents(client, db, cfg.Toolkit,
			collector.WithDependentsMaxPages(cfg.MaxPages),
			collector.WithDependentsDelay(cfg.RequestDelay),
			collector.WithDependentsLogger(logger),
		))
	}

	logger.Info("starting collection",
		"toolkit", cfg.Toolkit,
		"sources", runner.CollectorNames(),
		"maxPages", cfg.MaxPages,
	)

	summary, runErr := runner.Run(ctx)

	stats, err := db.Stats(ctx)
	if err != nil {
		logger.Error("failed to compute statistics", "error", err)
		stats = nil
	}

	if err := outputReport(cfg, &report.Report{Run: summary, Stats: stats}); err != nil {
		logger.Error("failed to write report", "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	return runErr
}

// outputReport writes the run report in the configured format(s).
func outputReport(cfg *config.Config, rep *report.Report) error {
	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(os.Stdout, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(os.Stdout)
	default:
		writer = report.NewConsoleWriter(os.Stdout, report.WithVerbose(cfg.Verbose))
	}

	if cfg.ReportFile != "" {
		f, err := createReportFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()

		var fileWriter report.Writer
		switch {
		case cfg.JSONReport:
			fileWriter = report.NewJSONWriter(f, report.WithPrettyPrint())
		case cfg.MarkdownReport:
			fileWriter = report.NewMarkdownWriter(f)
		default:
			fileWriter = report.NewConsoleWriter(f, report.WithVerbose(cfg.Verbose))
		}
		writer = report.NewMultiWriter(writer, fileWriter)
	}

	_, err := writer.Write(rep)
	return err
}

// createReportFile creates the report file, including parent directories.
func createReportFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // User-provided report path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return f, nil
}
