package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These are tuned for unauthenticated-friendly, polite collection against
// the GitHub API and the public dependents listing page.
const (
	// DefaultToolkit is the toolkit whose dependents are tracked when no
	// toolkit is configured. Overridable via config file or --toolkit.
	DefaultToolkit = "nao1215/markdown"

	// DefaultAPIBaseURL is the REST API endpoint. Point this at
	// https://<host>/api/v3/ for GitHub Enterprise Server.
	DefaultAPIBaseURL = "https://api.github.com/"

	// DefaultTimeout is the per-request HTTP timeout. Search queries and
	// the dependents page both answer well under this; anything slower is
	// better retried than waited on.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxPages limits result pages fetched per collector per run.
	// Code search caps out at 1000 results anyway, and the dependents
	// page degrades into very long tail pages for popular toolkits.
	DefaultMaxPages = 10

	// DefaultRequestDelay is the pause between successive requests within
	// one collector. A politeness setting: collection is sequential and
	// not latency sensitive, and unauthenticated search rate limits are
	// tight (10 requests/minute for code search).
	DefaultRequestDelay = 2 * time.Second

	// DefaultEnrichConcurrency is the number of concurrent metadata
	// lookups during enrichment. Enrichment uses the core REST rate
	// limit, which tolerates modest parallelism.
	DefaultEnrichConcurrency = 4

	// DefaultListenAddr is the dashboard's listen address.
	DefaultListenAddr = "localhost:8080"

	// DefaultPerPage is the dashboard's default page size.
	DefaultPerPage = 25

	// MaxPerPage caps the page size a dashboard client can request.
	MaxPerPage = 200

	// AppName is the application name used for XDG directory paths.
	AppName = "depwatch"
)

// Config holds all configuration options for depwatch.
// This struct is populated from CLI flags plus the optional config file
// and passed through the application via dependency injection rather
// than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., CollectConfig, ServeConfig) for simplicity. The number of
// options is manageable, and commands simply ignore fields they don't use.
type Config struct {
	// Toolkit is the "owner/name" of the tracked toolkit.
	Toolkit string

	// PackagePatterns are manifest search terms used by the code search
	// collector, one query per pattern (e.g. the toolkit's module path).
	// When empty, the toolkit's module path on the platform is used.
	PackagePatterns []string

	// APIBaseURL is the REST API base URL. The GraphQL endpoint is
	// derived from it.
	APIBaseURL string

	// Token is the API access token. Resolved from --token, the
	// GITHUB_TOKEN environment variable, or the gh CLI, in that order.
	// Never logged.
	Token string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// MaxPages limits result pages per collector per run.
	MaxPages int

	// RequestDelay is the pause between successive requests within a collector.
	RequestDelay time.Duration

	// EnrichConcurrency is the worker count for the enrichment stage.
	// Zero disables enrichment.
	EnrichConcurrency int

	// EnableRESTSearch toggles the REST code search collector.
	EnableRESTSearch bool

	// EnableGraphQLSearch toggles the GraphQL search collector.
	EnableGraphQLSearch bool

	// EnableDependents toggles the dependents page scrape collector.
	EnableDependents bool

	// ListenAddr is the dashboard server's listen address.
	ListenAddr string

	// DBDir is the directory holding the SQLite database.
	// Defaults to the XDG data directory (~/.local/share/depwatch on Linux).
	DBDir string

	// Verbose enables debug-level logging.
	Verbose bool

	// JSONReport switches the collect run summary to JSON output.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport switches the collect run summary to Markdown output.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output path for the run summary report.
	// When empty, the summary is written to stdout.
	ReportFile string

	// ConfigFilePath is the explicit path to the configuration file.
	// Empty means search the usual locations.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use
// cases. Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (timeouts, page sizes).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Toolkit:             DefaultToolkit,
		APIBaseURL:          DefaultAPIBaseURL,
		Timeout:             DefaultTimeout,
		MaxPages:            DefaultMaxPages,
		RequestDelay:        DefaultRequestDelay,
		EnrichConcurrency:   DefaultEnrichConcurrency,
		EnableRESTSearch:    true,
		EnableGraphQLSearch: true,
		EnableDependents:    true,
		ListenAddr:          DefaultListenAddr,
		DBDir:               XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for depwatch.
// On Linux: ~/.local/share/depwatch
// On macOS: ~/Library/Application Support/depwatch
// On Windows: %LOCALAPPDATA%\depwatch
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for depwatch.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate once after CLI parsing, before any
// network or database activity, and return the first error found; fixing
// one error often makes others irrelevant.
func (c *Config) Validate() error {
	if c.Toolkit == "" {
		return ErrNoToolkit
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}

	if c.RequestDelay < 0 {
		return ErrInvalidRequestDelay
	}

	if c.EnrichConcurrency < 0 {
		return ErrInvalidConcurrency
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if !c.EnableRESTSearch && !c.EnableGraphQLSearch && !c.EnableDependents {
		return ErrNoCollectors
	}

	return nil
}
