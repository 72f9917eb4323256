package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/depwatch/internal/config"
	"github.com/nao1215/depwatch/internal/database"
	"github.com/nao1215/depwatch/internal/model"
	"github.com/nao1215/depwatch/internal/report"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the repository table as CSV",
		Long: `Export writes every stored repository as CSV to stdout or a file.

The rows are streamed straight from the database, so exports of large
tables stay cheap.

Examples:
  # Export to stdout
  depwatch export

  # Export to a file, most-starred first
  depwatch export -o dependents.csv --sort stars

  # Export only repositories matching a search term
  depwatch export -q "cli"`,
		Args: cobra.NoArgs,
		RunE: runExportCmd,
	}

	cmd.Flags().StringP("output", "o", "", "Write CSV to specified file path (default: stdout)")
	cmd.Flags().StringP("sort", "s", string(database.SortByStars),
		"Sort column: stars, name, pushed_at, discovered_at, updated_at")
	cmd.Flags().String("order", "desc", "Sort order: asc or desc")
	cmd.Flags().StringP("query", "q", "", "Filter by substring match on name or description")

	return cmd
}

// runExportCmd executes the export command.
func runExportCmd(cmd *cobra.Command, _ []string) error {
	logger := setupLogger(getVerboseFlag(cmd))
	slog.SetDefault(logger)

	sort, err := cmd.Flags().GetString("sort")
	if err != nil {
		return err
	}
	order, err := cmd.Flags().GetString("order")
	if err != nil {
		return err
	}
	query, err := cmd.Flags().GetString("query")
	if err != nil {
		return err
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	db, err := database.Open(config.XDGDataDir(), database.Options{})
	if err != nil {
		return fmt.Errorf("failed to open database (run 'depwatch collect' first): %w", err)
	}
	defer db.Close()

	var output io.Writer = os.Stdout
	if outputPath != "" {
		f, err := createReportFile(outputPath)
		if err != nil {
			return err
		}
		defer f.Close()
		output = f
	}

	opts := database.ListOptions{
		Sort:       database.SortKey(sort),
		Descending: order != "asc",
		Search:     query,
	}

	count := 0
	err = report.WriteCSV(output, func(fn func(*model.Repository) error) error {
		return db.ForEachRepository(cmd.Context(), opts, func(repo *model.Repository) error {
			count++
			return fn(repo)
		})
	})
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if outputPath != "" {
		fmt.Printf("Exported %d repositories to %s\n", count, outputPath)
	}
	return nil
}
