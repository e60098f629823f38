package cmd

import (
	"fmt"
	"os"

	"github.com/prepsphere/server/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string

	rootCmd = newRootCmd()
)

// newRootCmd builds the command tree. Running it without a subcommand
// starts the server.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "server",
		Short: "PrepSphere server - college placement portal backend",
		Long: `PrepSphere server is the backend of a college placement portal.

It serves the HTTP API used by students, the training and placement
office (TPO) and administrators:
- Student accounts, profiles and the TPO approval workflow
- Resume and certificate uploads to R2/S3 or local disk
- Job postings, applications and placement events
- In-app notifications with email delivery through a job queue
- Placement statistics and CSV reports`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), serveOptions{})
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file path (optional, uses env vars by default)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, console) (default: json)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(newVersionCmd())
	root.AddCommand(newHealthcheckCmd())
	return root
}

// Execute runs the root command. It is called once by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment, overlays --config when given and then
// applies the logging flags.
func loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return config.Config{}, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}
