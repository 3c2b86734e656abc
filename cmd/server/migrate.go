package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/festy23/contribution_engine/internal/database/database"
	"github.com/festy23/contribution_engine/internal/database/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

// withDB opens PostgreSQL for commands that need only the schema.
func withDB(run func(cmd *cobra.Command, db *gorm.DB) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		db, err := database.New(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = database.Close(db) }()
		return run(cmd, db)
	}
}

func init() {
	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db *gorm.DB) error {
				if err := migrate.Migrate(db); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert every migration",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db *gorm.DB) error {
				if err := migrate.Rollback(db); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the schema version",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db *gorm.DB) error {
				v, dirty, err := migrate.Version(db)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
				return nil
			}),
		},
	)
	rootCmd.AddCommand(migrateCmd)
}
