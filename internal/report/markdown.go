package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeTallies(md, report)
	if report.Stats != nil {
		w.writeStats(md, report)
	}

	return len(md.String()), md.Build()
}

// writeHeader writes the run header table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *Report) {
	run := report.Run

	md.H1("Dependents Collection Report")
	md.PlainText("")

	status := "✅ Complete"
	if run.Error != "" {
		status = "❌ Error - " + run.Error
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Toolkit", "`" + run.Toolkit + "`"},
			{"Run ID", run.RunID},
			{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", run.Duration().String()},
			{"Status", status},
		},
	})
	md.PlainText("")
}

// writeTallies writes the per-source collection results.
func (w *MarkdownWriter) writeTallies(md *markdown.Markdown, report *Report) {
	run := report.Run

	md.H2("Collection Results")
	md.PlainText("")

	if len(run.Tallies) == 0 {
		md.PlainText("No collectors ran.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(run.Tallies)+1)
	for _, t := range run.Tallies {
		rows = append(rows, []string{
			t.Source.String(),
			strconv.Itoa(t.Discovered),
			strconv.Itoa(t.New),
			strconv.Itoa(t.Updated),
			strconv.Itoa(t.Failed),
		})
	}
	rows = append(rows, []string{
		"**Total**",
		"**" + strconv.Itoa(run.TotalDiscovered()) + "**",
		"**" + strconv.Itoa(run.TotalNew()) + "**",
		"**" + strconv.Itoa(run.TotalUpdated()) + "**",
		"**" + strconv.Itoa(run.TotalFailed()) + "**",
	})

	md.Table(markdown.TableSet{
		Header: []string{"Source", "Discovered", "New", "Updated", "Failed"},
		Rows:   rows,
	})
	md.PlainText("")

	if run.TotalFailed() > 0 {
		md.Warningf("%d candidate(s) could not be stored or refreshed.", run.TotalFailed())
		md.PlainText("")
	}
}

// writeStats writes the aggregate statistics section.
func (w *MarkdownWriter) writeStats(md *markdown.Markdown, report *Report) {
	stats := report.Stats

	md.H2("Repository Statistics")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Repositories", strconv.Itoa(stats.TotalRepositories)},
			{"Total stars", strconv.Itoa(stats.TotalStars)},
			{"Total forks", strconv.Itoa(stats.TotalForks)},
			{"Archived", strconv.Itoa(stats.ArchivedCount)},
			{"Forks of other repos", strconv.Itoa(stats.ForkCount)},
			{"New in the last week", strconv.Itoa(stats.NewLastWeek)},
		},
	})
	md.PlainText("")

	if len(stats.Sources) > 0 {
		w.writeSourceChart(md, report)
	}

	if len(stats.Languages) > 0 {
		rows := make([][]string, 0, len(stats.Languages))
		for _, lang := range stats.Languages {
			rows = append(rows, []string{lang.Language, strconv.Itoa(lang.Count)})
		}
		md.H3("Languages")
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Language", "Repositories"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

// writeSourceChart writes a mermaid pie chart of discovery sources.
func (w *MarkdownWriter) writeSourceChart(md *markdown.Markdown, report *Report) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Discovery Sources"),
		piechart.WithShowData(true),
	)

	for _, src := range report.Stats.Sources {
		if src.Count > 0 {
			chart.LabelAndIntValue(src.Source.String(), uint64(src.Count))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}
