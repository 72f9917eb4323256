package report

import (
	"encoding/json"
	"io"
	"time"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because:
// 1. It's part of the standard library (no extra dependencies)
// 2. It's sufficient for our needs
// 3. It provides consistent behavior across Go versions
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = ""
		w.indentString = "  "
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// jsonReport is the serialized shape of a run report.
type jsonReport struct {
	Run   *jsonRun `json:"run"`
	Stats any      `json:"stats,omitempty"`
}

// jsonRun flattens the run summary with derived totals.
type jsonRun struct {
	RunID      string `json:"run_id"`
	Toolkit    string `json:"toolkit"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Duration   string `json:"duration"`
	Tallies    any    `json:"tallies"`
	Discovered int    `json:"discovered"`
	New        int    `json:"new"`
	Updated    int    `json:"updated"`
	Failed     int    `json:"failed"`
	Error      string `json:"error,omitempty"`
}

// Write outputs the report as a single JSON document.
func (w *JSONWriter) Write(report *Report) (int, error) {
	run := report.Run
	doc := jsonReport{
		Run: &jsonRun{
			RunID:      run.RunID,
			Toolkit:    run.Toolkit,
			StartedAt:  run.StartedAt.UTC().Format(time.RFC3339),
			FinishedAt: run.FinishedAt.UTC().Format(time.RFC3339),
			Duration:   run.Duration().Truncate(time.Millisecond).String(),
			Tallies:    run.Tallies,
			Discovered: run.TotalDiscovered(),
			New:        run.TotalNew(),
			Updated:    run.TotalUpdated(),
			Failed:     run.TotalFailed(),
			Error:      run.Error,
		},
	}
	if report.Stats != nil {
		doc.Stats = report.Stats
	}

	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(doc, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')

	return w.output.Write(data)
}
