package cmd

import (
	"fmt"
	"strconv"

	"github.com/prepsphere/server/internal/config"
	"github.com/prepsphere/server/internal/storage/postgres"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply or roll back the embedded schema migrations.

Examples:
  server migrate up
  server migrate down 1
  server migrate version
  server migrate force 1`,
	}

	var skipJobs bool
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			logger := config.NewLogger(cfg.Logging)
			if err := postgres.MigrateUp(cfg.Database.URL); err != nil {
				return err
			}
			if skipJobs {
				fmt.Fprintln(cmd.OutOrStdout(), "schema migrations applied")
				return nil
			}
			pool, err := postgres.Open(cmd.Context(), cfg.Database.URL, 2)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := postgres.MigrateRiver(cmd.Context(), pool, logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema and job queue migrations applied")
			return nil
		},
	}
	up.Flags().BoolVar(&skipJobs, "skip-jobs", false, "do not install the job queue tables")

	down := &cobra.Command{
		Use:   "down STEPS",
		Short: "Roll back the given number of migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := parseSteps(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if err := postgres.MigrateDown(cfg.Database.URL, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied and embedded schema versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			applied, dirty, err := postgres.MigrationVersion(cfg.Database.URL)
			if err != nil {
				return err
			}
			latest, err := postgres.LatestMigration()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Applied:  %d\n", applied)
			fmt.Fprintf(out, "Embedded: %d\n", latest)
			if dirty {
				fmt.Fprintln(out, "State:    dirty (fix the failed migration, then force the version)")
			}
			return nil
		},
	}

	force := &cobra.Command{
		Use:   "force VERSION",
		Short: "Mark a version as applied without running it",
		Long: `Record VERSION as the applied schema version and clear the dirty flag.

Use it after repairing a failed migration by hand, or run "force 1" on a
database created by the old startup bootstrap so that "migrate up" applies
the legacy column repairs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseSteps(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if err := postgres.MigrateForce(cfg.Database.URL, target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version forced to %d\n", target)
			return nil
		},
	}

	cmd.AddCommand(up, down, version, force)
	return cmd
}

// parseSteps reads a positive count or version argument.
func parseSteps(arg string) (int, error) {
	steps, err := strconv.Atoi(arg)
	if err != nil || steps <= 0 {
		return 0, fmt.Errorf("expected a positive integer, got %q", arg)
	}
	return steps, nil
}
