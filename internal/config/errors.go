package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoToolkit is returned when no toolkit is configured.
	ErrNoToolkit = errors.New("no toolkit specified: set --toolkit or the toolkit key in .depwatch")

	// ErrInvalidTimeout is returned when the HTTP timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxPages is returned when the per-collector page limit is
	// not positive. Zero pages would mean no collection at all.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidRequestDelay is returned when the request delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidRequestDelay = errors.New("invalid request delay: must be non-negative")

	// ErrInvalidConcurrency is returned when the enrichment concurrency is
	// negative. Use 0 to disable enrichment.
	ErrInvalidConcurrency = errors.New("invalid enrich concurrency: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrNoCollectors is returned when every collector is disabled.
	ErrNoCollectors = errors.New("all collectors disabled: enable at least one of rest-search, graphql-search, dependents")
)
