package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"notes-sync-client/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

// SyncStatusRepository stores the single sync cursor document. Get returns ErrNotFound
// until the first pass has completed.
type SyncStatusRepository interface {
	Get(ctx context.Context) (*domain.SyncStatus, error)
	Save(ctx context.Context, status *domain.SyncStatus) error
	Clear(ctx context.Context) error
}

type syncStatusRepository struct {
	store
}

type syncStatusDoc struct {
	ID               string          `json:"_id"`
	Rev              string          `json:"_rev,omitempty"`
	DocType          string          `json:"doc_type"`
	LastSyncTime     time.Time       `json:"last_sync_time"`
	SyncTag          string          `json:"sync_tag"`
	SyncedNoteIDs    map[string]bool `json:"synced_note_ids"`
	LastPageSyncTime time.Time       `json:"last_page_sync_time"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

var syncStatusDocID = docID(docTypeSyncStatus, "current")

func NewSyncStatusRepository(client *kivik.Client, dbName string) SyncStatusRepository {
	return &syncStatusRepository{store{db: client.DB(dbName)}}
}

func (r *syncStatusRepository) Get(ctx context.Context) (*domain.SyncStatus, error) {
	var doc syncStatusDoc
	if err := r.get(ctx, syncStatusDocID, &doc); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get sync status: %w", err)
	}

	status := &domain.SyncStatus{
		LastSyncTime:     doc.LastSyncTime,
		SyncTag:          doc.SyncTag,
		SyncedNoteIDs:    doc.SyncedNoteIDs,
		LastPageSyncTime: doc.LastPageSyncTime,
	}
	if status.SyncedNoteIDs == nil {
		status.SyncedNoteIDs = make(map[string]bool)
	}
	return status, nil
}

func (r *syncStatusRepository) Save(ctx context.Context, status *domain.SyncStatus) error {
	rev, err := r.rev(ctx, syncStatusDocID)
	if err != nil {
		return fmt.Errorf("failed to read sync status revision: %w", err)
	}

	doc := syncStatusDoc{
		ID:               syncStatusDocID,
		Rev:              rev,
		DocType:          docTypeSyncStatus,
		LastSyncTime:     status.LastSyncTime,
		SyncTag:          status.SyncTag,
		SyncedNoteIDs:    status.SyncedNoteIDs,
		LastPageSyncTime: status.LastPageSyncTime,
		UpdatedAt:        time.Now(),
	}
	if err := r.put(ctx, syncStatusDocID, doc); err != nil {
		return fmt.Errorf("failed to save sync status: %w", err)
	}
	return nil
}

func (r *syncStatusRepository) Clear(ctx context.Context) error {
	if err := r.remove(ctx, syncStatusDocID); err != nil {
		return fmt.Errorf("failed to clear sync status: %w", err)
	}
	return nil
}
