package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ismaeeldev/nexa-server/config"
	"github.com/ismaeeldev/nexa-server/pkg/db"
)

// Migrate command flags.
var (
	migrateConfigFile   string
	migrateOutputFormat string
)

// NewMigrateCommand creates the 'migrate' command with its subcommands.
func NewMigrateCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply or inspect database schema migrations.

Examples:
  nexa-server migrate up
  nexa-server migrate status
  nexa-server migrate status -o json`,
	}

	c.PersistentFlags().StringVar(&migrateConfigFile, "config", "", "config file path (YAML)")
	c.PersistentFlags().StringVarP(&migrateOutputFormat, "output", "o", "", "output format: text, json")

	c.AddCommand(newMigrateUpCommand())
	c.AddCommand(newMigrateStatusCommand())

	return c
}

func newMigrateUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.Load(migrateConfigFile)
			if err != nil {
				return err
			}

			ctx := c.Context()
			pool, err := connectDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close(pool)

			result, err := db.RunMigrations(ctx, pool)
			if err != nil {
				return fmt.Errorf("applying migrations: %w", err)
			}

			out := c.OutOrStdout()
			if migrateOutputFormat == "json" {
				return outputJSON(out, result)
			}

			if len(result.Applied) == 0 {
				fmt.Fprintln(out, "Schema is up to date.")
				return nil
			}
			fmt.Fprintf(out, "Applied %d migration(s):\n", len(result.Applied))
			for _, version := range result.Applied {
				fmt.Fprintf(out, "  %s\n", version)
			}
			return nil
		},
	}
}

func newMigrateStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(c *cobra.Command, args []string) error {
			cfg, err := config.Load(migrateConfigFile)
			if err != nil {
				return err
			}

			ctx := c.Context()
			pool, err := connectDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close(pool)

			entries, err := db.MigrationStatus(ctx, pool)
			if err != nil {
				return fmt.Errorf("reading migration status: %w", err)
			}

			out := c.OutOrStdout()
			if migrateOutputFormat == "json" {
				return outputJSON(out, entries)
			}

			fmt.Fprintf(out, "%-40s %s\n", "MIGRATION", "APPLIED")
			for _, e := range entries {
				applied := "pending"
				if e.AppliedAt != nil {
					applied = e.AppliedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(out, "%-40s %s\n", e.Version, applied)
			}
			return nil
		},
	}
}
