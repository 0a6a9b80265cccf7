package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jizdni-rady/backend/internal/db"
)

func newSchemaCmd(configPath *string) *cobra.Command {
	var dialectName string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the database schema, or apply it with --apply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apply, _ := cmd.Flags().GetBool("apply")
			if apply {
				_, database, err := openDatabase(cmd.Context(), *configPath)
				if err != nil {
					return err
				}
				return database.Close()
			}

			dialect, err := db.ParseDialect(dialectName)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), db.SchemaSQL(dialect))
			return nil
		},
	}

	cmd.Flags().StringVar(&dialectName, "dialect", "sqlite", "Schema dialect to print: sqlite or postgres")
	cmd.Flags().Bool("apply", false, "Create the tables in the configured database")
	return cmd
}
