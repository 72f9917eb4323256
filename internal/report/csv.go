package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/depwatch/internal/model"
)

// CSVColumns is the column order of repository CSV exports. The CLI
// export command and the dashboard download share it.
var CSVColumns = []string{
	"full_name", "html_url", "description", "stars", "forks",
	"language", "archived", "fork", "pushed_at", "created_at",
	"source", "discovered_at",
}

// CSVRecord formats one repository as a CSV record in CSVColumns order.
func CSVRecord(repo *model.Repository) []string {
	return []string{
		repo.FullName,
		repo.HTMLURL,
		repo.Description,
		strconv.Itoa(repo.Stars),
		strconv.Itoa(repo.Forks),
		repo.Language,
		strconv.FormatBool(repo.Archived),
		strconv.FormatBool(repo.Fork),
		csvTime(repo.PushedAt),
		csvTime(repo.CreatedAt),
		repo.Source.String(),
		csvTime(repo.DiscoveredAt),
	}
}

// WriteCSV streams repositories as CSV. The iterate callback drives the
// rows so the whole table never sits in memory.
func WriteCSV(output io.Writer, iterate func(fn func(*model.Repository) error) error) error {
	cw := csv.NewWriter(output)
	if err := cw.Write(CSVColumns); err != nil {
		return err
	}

	err := iterate(func(repo *model.Repository) error {
		return cw.Write(CSVRecord(repo))
	})
	if err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// csvTime formats a timestamp for export, empty for zero times.
func csvTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
