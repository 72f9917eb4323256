package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nao1215/depwatch/internal/config"
	"github.com/nao1215/depwatch/internal/database"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate statistics over the collected repositories",
		Long: `Stats prints totals, language and source breakdowns, and recent
collection run history for the local database.

Examples:
  # Human-readable statistics
  depwatch stats

  # Machine-readable statistics
  depwatch stats --json`,
		Args: cobra.NoArgs,
		RunE: runStatsCmd,
	}

	cmd.Flags().BoolP("json", "j", false, "Output statistics as JSON")
	cmd.Flags().Int("runs", 5, "Number of recent collection runs to show")

	return cmd
}

// runStatsCmd executes the stats command.
func runStatsCmd(cmd *cobra.Command, _ []string) error {
	logger := setupLogger(getVerboseFlag(cmd))
	slog.SetDefault(logger)

	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	runLimit, err := cmd.Flags().GetInt("runs")
	if err != nil {
		return err
	}

	db, err := database.Open(config.XDGDataDir(), database.Options{})
	if err != nil {
		return fmt.Errorf("failed to open database (run 'depwatch collect' first): %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	stats, err := db.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute statistics: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	printer := message.NewPrinter(language.English)
	heading := color.New(color.Bold)

	heading.Println("Repository statistics")
	printer.Printf("  repositories:  %d\n", stats.TotalRepositories)
	printer.Printf("  total stars:   %d\n", stats.TotalStars)
	printer.Printf("  total forks:   %d\n", stats.TotalForks)
	printer.Printf("  archived:      %d\n", stats.ArchivedCount)
	printer.Printf("  forks:         %d\n", stats.ForkCount)
	printer.Printf("  new last week: %d\n", stats.NewLastWeek)

	if len(stats.Languages) > 0 {
		fmt.Println()
		heading.Println("Languages")
		for _, lang := range stats.Languages {
			printer.Printf("  %-16s %d\n", lang.Language, lang.Count)
		}
	}

	if len(stats.Sources) > 0 {
		fmt.Println()
		heading.Println("Discovery sources")
		for _, src := range stats.Sources {
			printer.Printf("  %-16s %d\n", src.Source.String(), src.Count)
		}
	}

	if runLimit > 0 {
		runs, err := db.ListRuns(ctx, runLimit)
		if err != nil {
			return fmt.Errorf("failed to list collection runs: %w", err)
		}
		if len(runs) > 0 {
			fmt.Println()
			heading.Println("Recent collection runs")
			for _, run := range runs {
				status := "ok"
				if run.Error != "" {
					status = "failed"
				}
				fmt.Printf("  %s  %s  %d new, %d updated (%s)\n",
					run.StartedAt.Format("2006-01-02 15:04"),
					status,
					run.TotalNew(),
					run.TotalUpdated(),
					run.Duration().Truncate(time.Second).String(),
				)
			}
		}
	}

	return nil
}
