package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/keyshift/cmd/keyshift/commands"
	"github.com/systmms/keyshift/internal/config"
	"github.com/systmms/keyshift/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	// Create config placeholder
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "keyshift",
		Short: "Session secret provisioning and rotation",
		Long: `keyshift resolves the session signing secret from the environment, a
remote secret manager or the filesystem, provisions one on first run, and
rotates it while keeping existing sessions alive.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize logger with parsed flags
			logger := logging.New(debug, noColor)

			cfg.Path = configFile
			cfg.Logger = logger
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	// Add commands
	rootCmd.AddCommand(
		commands.NewGenerateCommand(cfg),
		commands.NewResolveCommand(cfg),
		commands.NewRotateCommand(cfg),
		commands.NewDoctorCommand(cfg),
		commands.NewCompletionCommand(cfg),
	)

	return rootCmd.Execute()
}
