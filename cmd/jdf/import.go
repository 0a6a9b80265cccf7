package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jizdni-rady/backend/internal/importer"
	"github.com/jizdni-rady/backend/internal/jdf"
	"github.com/jizdni-rady/backend/internal/repository"
)

func newImportCmd(configPath *string) *cobra.Command {
	var strict, nonAtomic bool

	cmd := &cobra.Command{
		Use:   "import <bundle-dir|bundle.zip>",
		Short: "Import a JDF bundle from a directory or zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, database, err := openDatabase(ctx, *configPath)
			if err != nil {
				return err
			}
			defer database.Close()

			opts, err := importOptions(cfg)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("strict") {
				opts.StrictKeys = strict
			}
			if nonAtomic {
				opts.Atomic = false
			}

			dir := args[0]
			if strings.EqualFold(filepath.Ext(dir), ".zip") {
				workDir, err := os.MkdirTemp(cfg.TempDir, "jdf-import-*")
				if err != nil {
					return fmt.Errorf("failed to create temp dir: %w", err)
				}
				if cfg.KeepTemp {
					log.Printf("Keeping extracted bundle in %s", workDir)
				} else {
					defer os.RemoveAll(workDir)
				}

				dir, err = jdf.ExtractZip(args[0], workDir, cfg.MaxExtractBytes())
				if err != nil {
					return err
				}
			}

			imp := importer.New(repository.NewJDFRepository(database), opts)
			res, err := imp.Run(ctx, dir)
			if err != nil {
				return err
			}

			c := res.Counts
			log.Printf("Imported run %s: %d carriers, %d lines, %d stops, %d codes, %d connections, %d stop connections",
				res.RunID, c.Carriers, c.Lines, c.Stops, c.Codes, c.Connections, c.StopConnections)
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Fail rows whose natural key has absent fields")
	cmd.Flags().BoolVar(&nonAtomic, "non-atomic", false, "Commit each row as it is written instead of one transaction")
	return cmd
}
