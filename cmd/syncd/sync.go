package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"notes-sync-client/internal/domain"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:       "sync [full|incremental|replay]",
	Short:     "Run one sync pass and print its result",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(domain.SyncKindFull), string(domain.SyncKindIncremental), string(domain.SyncKindReplay)},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := domain.SyncKindIncremental
		if len(args) == 1 {
			kind = domain.SyncKind(args[0])
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		var run func(context.Context) (*domain.SyncResult, error)
		switch kind {
		case domain.SyncKindFull:
			run = a.sync.RunFullSync
		case domain.SyncKindReplay:
			run = a.sync.ProcessOfflineQueue
		default:
			run = a.sync.RunIncrementalSync
		}

		result, err := run(ctx)
		if err != nil {
			return fmt.Errorf("%s sync failed: %w", kind, err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
