package model

import "time"

// SourceTally is the per-collector outcome within a collection run.
type SourceTally struct {
	// Source is the collector that produced this tally.
	Source Source `json:"source"`

	// Discovered is the number of candidate repositories the collector saw,
	// including duplicates of already-stored repositories.
	Discovered int `json:"discovered"`

	// New is the number of repositories inserted for the first time.
	New int `json:"new"`

	// Updated is the number of already-stored repositories refreshed.
	Updated int `json:"updated"`

	// Failed is the number of candidates that could not be normalized
	// or stored (malformed names, fetch errors).
	Failed int `json:"failed"`
}

// RunSummary is the outcome of one collection run.
// One row is stored per run so that the dashboard can show collection
// history alongside the repository list.
type RunSummary struct {
	// ID is the database row ID. Zero for summaries not yet stored.
	ID int64 `json:"id"`

	// RunID is the unique identifier of the run (UUID).
	RunID string `json:"run_id"`

	// Toolkit is the "owner/name" of the toolkit whose dependents were collected.
	Toolkit string `json:"toolkit"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run completed, successfully or not.
	FinishedAt time.Time `json:"finished_at"`

	// Tallies holds one entry per collector that ran, in execution order.
	Tallies []SourceTally `json:"tallies"`

	// Error is the message of the run-level failure, if any.
	// Per-candidate failures are counted in Tallies instead.
	Error string `json:"error,omitempty"`
}

// Duration returns the wall-clock duration of the run.
func (r *RunSummary) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// TotalDiscovered returns the sum of discovered candidates across collectors.
func (r *RunSummary) TotalDiscovered() int {
	total := 0
	for _, t := range r.Tallies {
		total += t.Discovered
	}
	return total
}

// TotalNew returns the sum of newly inserted repositories across collectors.
func (r *RunSummary) TotalNew() int {
	total := 0
	for _, t := range r.Tallies {
		total += t.New
	}
	return total
}

// TotalUpdated returns the sum of refreshed repositories across collectors.
func (r *RunSummary) TotalUpdated() int {
	total := 0
	for _, t := range r.Tallies {
		total += t.Updated
	}
	return total
}

// TotalFailed returns the sum of failed candidates across collectors.
func (r *RunSummary) TotalFailed() int {
	total := 0
	for _, t := range r.Tallies {
		total += t.Failed
	}
	return total
}
