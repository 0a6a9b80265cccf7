package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jizdni-rady/backend/internal/config"
	"github.com/jizdni-rady/backend/internal/db"
	"github.com/jizdni-rady/backend/internal/importer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "jdf",
		Short:        "Import and serve JDF timetable bundles",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetFlags(log.LstdFlags | log.Lmicroseconds)
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Optional YAML config file")

	cmd.AddCommand(newImportCmd(&configPath))
	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newSchemaCmd(&configPath))
	return cmd
}

// openDatabase loads the configuration and connects with the schema in place.
func openDatabase(ctx context.Context, configPath string) (*config.Config, *db.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	dialect, err := db.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, nil, err
	}

	database, err := db.Connect(dialect, cfg.DSN())
	if err != nil {
		return nil, nil, err
	}

	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, nil, err
	}
	return cfg, database, nil
}

// importOptions maps configuration onto importer options.
func importOptions(cfg *config.Config) (importer.Options, error) {
	policy, err := importer.ParseStopKeyPolicy(cfg.StopKey)
	if err != nil {
		return importer.Options{}, fmt.Errorf("invalid JDF_STOP_KEY: %w", err)
	}
	return importer.Options{
		Atomic:     cfg.AtomicImport,
		StrictKeys: cfg.StrictKeys,
		StopKey:    policy,
	}, nil
}
