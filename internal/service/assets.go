package service

import (
	"context"
	"fmt"

	"notes-sync-client/internal/remote"
	"notes-sync-client/internal/repository"

	"golang.org/x/sync/errgroup"
)

// fetchAssets downloads the assets of one note that are not cached yet. Downloads run
// concurrently up to limit and are joined before returning.
func fetchAssets(ctx context.Context, client remote.Client, store repository.AssetStore, ids []string, limit int) error {
	if store == nil || len(ids) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, id := range ids {
		g.Go(func() error {
			if ok, err := store.Exists(id); err == nil && ok {
				return nil
			}

			data, err := client.DownloadAsset(gctx, id)
			if err != nil {
				return fmt.Errorf("download asset %s: %w", id, err)
			}
			if err := store.Put(id, data); err != nil {
				return fmt.Errorf("store asset %s: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}
