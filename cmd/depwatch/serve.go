package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/depwatch/internal/config"
	"github.com/nao1215/depwatch/internal/database"
	"github.com/nao1215/depwatch/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dependents dashboard",
		Long: `Serve starts the web dashboard over the collected data.

The dashboard shows aggregate statistics and a paginated, sortable,
searchable repository list, plus a CSV download. It reads the database
populated by 'depwatch collect'; run that first.

Examples:
  # Serve on the default address (localhost:8080)
  depwatch serve

  # Serve on all interfaces
  depwatch serve --addr :8080`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("addr", "a", config.DefaultListenAddr, "Listen address")
	cmd.Flags().StringP("toolkit", "k", "", "Toolkit shown in the dashboard header")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .depwatch in current or home directory)")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	if found := config.FindConfigFile(configPath); found != "" {
		file, err := config.LoadConfigFile(found)
		if err != nil {
			return fmt.Errorf("failed to load config file %s: %w", found, err)
		}
		if err := file.Apply(cfg); err != nil {
			return fmt.Errorf("invalid config file %s: %w", found, err)
		}
	} else if configPath != "" {
		return fmt.Errorf("configuration file not found: %s", configPath)
	}

	if cmd.Flags().Changed("addr") {
		if cfg.ListenAddr, err = cmd.Flags().GetString("addr"); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("toolkit") {
		if cfg.Toolkit, err = cmd.Flags().GetString("toolkit"); err != nil {
			return err
		}
	}

	logger := setupLogger(getVerboseFlag(cmd))
	slog.SetDefault(logger)

	db, err := database.Open(cfg.DBDir, database.Options{})
	if err != nil {
		return fmt.Errorf("failed to open database (run 'depwatch collect' first): %w", err)
	}
	defer db.Close()

	ctx, cancel := signalContext(logger)
	defer cancel()

	count, err := db.CountRepositories(ctx)
	if err != nil {
		return fmt.Errorf("failed to count repositories: %w", err)
	}

	srv := server.New(db, cfg.Toolkit,
		server.WithAddr(cfg.ListenAddr),
		server.WithPageSize(config.DefaultPerPage, config.MaxPerPage),
		server.WithServerLogger(logger),
	)

	fmt.Printf("Serving %d repositories at http://%s\n", count, srv.Addr())
	return srv.ListenAndServe(ctx)
}
