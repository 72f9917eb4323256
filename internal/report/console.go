package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ConsoleWriter outputs human-readable text reports for terminal display.
//
// Design decision: We use fatih/color for severity-style highlighting
// because it degrades to plain text automatically when the output is not
// a terminal, so piping the report to a file stays clean.
type ConsoleWriter struct {
	baseWriter

	// verbose enables the per-source breakdown and statistics sections.
	verbose bool
}

// ConsoleWriterOption configures a ConsoleWriter.
type ConsoleWriterOption func(*ConsoleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) ConsoleWriterOption {
	return func(w *ConsoleWriter) {
		w.verbose = verbose
	}
}

// NewConsoleWriter creates a ConsoleWriter that outputs to the given writer.
func NewConsoleWriter(output io.Writer, opts ...ConsoleWriterOption) *ConsoleWriter {
	w := &ConsoleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

var (
	headingColor = color.New(color.Bold)
	goodColor    = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	badColor     = color.New(color.FgRed)
)

// Write outputs the report in human-readable format.
func (w *ConsoleWriter) Write(report *Report) (int, error) {
	var sb strings.Builder
	run := report.Run

	headingColor.Fprintf(&sb, "Collection run for %s\n", run.Toolkit)
	fmt.Fprintf(&sb, "  run id:   %s\n", run.RunID)
	fmt.Fprintf(&sb, "  duration: %s\n", run.Duration().String())

	if run.Error != "" {
		badColor.Fprintf(&sb, "  error:    %s\n", run.Error)
	}
	sb.WriteString("\n")

	w.writeTallies(&sb, report)

	if w.verbose && report.Stats != nil {
		w.writeStats(&sb, report)
	}

	return w.output.Write([]byte(sb.String()))
}

// writeTallies writes the per-source result lines and totals.
func (w *ConsoleWriter) writeTallies(sb *strings.Builder, report *Report) {
	run := report.Run

	if len(run.Tallies) == 0 {
		sb.WriteString("No collectors ran.\n")
		return
	}

	for _, t := range run.Tallies {
		fmt.Fprintf(sb, "  %-20s discovered %4d, new %4d, updated %4d",
			t.Source.String(), t.Discovered, t.New, t.Updated)
		if t.Failed > 0 {
			warnColor.Fprintf(sb, ", failed %d", t.Failed)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	line := fmt.Sprintf("Total: %d discovered, %d new, %d updated, %d failed\n",
		run.TotalDiscovered(), run.TotalNew(), run.TotalUpdated(), run.TotalFailed())
	if run.TotalFailed() > 0 {
		warnColor.Fprint(sb, line)
	} else {
		goodColor.Fprint(sb, line)
	}
}

// writeStats writes the aggregate statistics section.
func (w *ConsoleWriter) writeStats(sb *strings.Builder, report *Report) {
	stats := report.Stats

	sb.WriteString("\n")
	headingColor.Fprintln(sb, "Repository statistics")
	fmt.Fprintf(sb, "  repositories:  %d\n", stats.TotalRepositories)
	fmt.Fprintf(sb, "  total stars:   %d\n", stats.TotalStars)
	fmt.Fprintf(sb, "  total forks:   %d\n", stats.TotalForks)
	fmt.Fprintf(sb, "  archived:      %d\n", stats.ArchivedCount)
	fmt.Fprintf(sb, "  new last week: %d\n", stats.NewLastWeek)

	if len(stats.Languages) > 0 {
		sb.WriteString("  languages:\n")
		for _, lang := range stats.Languages {
			fmt.Fprintf(sb, "    %-16s %d\n", lang.Language, lang.Count)
		}
	}
}
