package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"notes-sync-client/internal/handler"
	"notes-sync-client/internal/websocket"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync engine and its local control API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		wsManager := websocket.NewManager(websocket.Options{
			MaxClients:     cfg.WebSocket.MaxClients,
			WriteWait:      cfg.WebSocket.WriteWait,
			PongWait:       cfg.WebSocket.PongWait,
			PingPeriod:     cfg.WebSocket.PingPeriod,
			MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		}, logger)
		wsManager.SetMessageHandler(handler.NewWebSocketMessageHandler(ctx, a.sync, wsManager, logger))
		a.sync.SetObserver(wsManager)
		a.notes.SetObserver(wsManager)

		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:         addr,
			Handler:      newRouter(ctx, cfg, a, wsManager, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0, // sync passes may run for minutes
			IdleTimeout:  60 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			wsManager.Run(gctx)
			return nil
		})

		g.Go(func() error {
			autoSync(gctx, a, cfg.Sync.AutoSyncInterval)
			return nil
		})

		g.Go(func() error {
			logger.Info("starting notes sync engine", "addr", addr, "env", cfg.Server.Env)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down")

			a.sync.CancelSync()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		if err := g.Wait(); err != nil {
			return err
		}
		logger.Info("stopped gracefully")
		return nil
	},
}

// autoSync runs an incremental pass on every tick while a session is usable. Ticks
// that land on a running pass are skipped.
func autoSync(ctx context.Context, a *app, interval time.Duration) {
	if interval <= 0 {
		return
	}

	run := func() {
		if !a.session.IsOnline() || a.session.AuthError() != nil {
			return
		}
		if _, err := a.sync.RunIncrementalSync(ctx); err != nil {
			logger.Warn("auto sync failed", "error", err)
		}
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.sync.IsSyncing() {
				continue
			}
			run()
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
