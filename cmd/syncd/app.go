package main

import (
	"context"
	"fmt"
	"log/slog"

	"notes-sync-client/internal/config"
	"notes-sync-client/internal/remote"
	"notes-sync-client/internal/repository"
	"notes-sync-client/internal/service"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
)

// app holds the wired engine shared by the serve and sync commands.
type app struct {
	repos   service.Repositories
	session *service.SessionState
	queue   *service.OperationQueue
	sync    *service.SyncService
	notes   *service.NoteService
	couch   *kivik.Client
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	client, err := kivik.New("couch", cfg.Database.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to CouchDB: %w", err)
	}

	created, err := repository.EnsureDB(ctx, client, cfg.Database.Name)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info("created database", "name", cfg.Database.Name)
	}

	assets, err := repository.NewAssetStore(cfg.Sync.AssetDir)
	if err != nil {
		return nil, err
	}

	repos := service.Repositories{
		Notes:            repository.NewNoteRepository(client, cfg.Database.Name),
		Folders:          repository.NewFolderRepository(client, cfg.Database.Name),
		PendingDeletions: repository.NewPendingDeletionRepository(client, cfg.Database.Name),
		SyncStatus:       repository.NewSyncStatusRepository(client, cfg.Database.Name),
		Assets:           assets,
	}

	session := service.NewSessionState(cfg.Remote.SessionToken, true)
	remoteClient := remote.NewHTTPClient(cfg.Remote.BaseURL, cfg.Remote.Timeout, session.Token)

	queue := service.NewOperationQueue(repository.NewOperationRepository(client, cfg.Database.Name), logger)
	requeued, err := queue.RequeueInterrupted(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover offline queue: %w", err)
	}
	if requeued > 0 {
		logger.Info("requeued interrupted operations", "count", requeued)
	}

	syncService := service.NewSyncService(
		repos,
		remoteClient,
		queue,
		service.NewResolver(cfg.Sync.TimestampTolerance),
		session,
		service.SyncOptions{
			PrivateFolderID:  cfg.Sync.PrivateFolderID,
			AssetConcurrency: cfg.Sync.AssetConcurrency,
		},
		logger,
	)
	noteService := service.NewNoteService(repos, remoteClient, queue, session, cfg.Sync.PrivateFolderID, logger)

	return &app{
		repos:   repos,
		session: session,
		queue:   queue,
		sync:    syncService,
		notes:   noteService,
		couch:   client,
	}, nil
}

func (a *app) Close() error {
	return a.couch.Close()
}
