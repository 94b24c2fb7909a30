package main

import (
	"fmt"
	"log/slog"
	"os"

	"notes-sync-client/internal/config"
	"notes-sync-client/internal/logging"

	"github.com/spf13/cobra"
)

var (
	verbose bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "syncd",
	Short: "Local-first notes sync engine",
	Long: `syncd keeps a local CouchDB copy of your notes in step with the remote
notes service. Edits made offline are queued and replayed on reconnect.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if verbose {
			loaded.Logging.Level = "debug"
		}

		cfg = loaded
		logger = logging.New(cfg.Logging)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
