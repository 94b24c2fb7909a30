package repository

import (
	"context"
	"fmt"
	"time"

	"notes-sync-client/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type PendingDeletionRepository interface {
	List(ctx context.Context) ([]*domain.PendingDeletion, error)
	Save(ctx context.Context, pd *domain.PendingDeletion) error
	Delete(ctx context.Context, noteID string) error
}

type pendingDeletionRepository struct {
	store
}

type pendingDeletionDoc struct {
	ID        string    `json:"_id"`
	Rev       string    `json:"_rev,omitempty"`
	DocType   string    `json:"doc_type"`
	NoteID    string    `json:"note_id"`
	Tag       string    `json:"tag"`
	Purge     bool      `json:"purge"`
	CreatedAt time.Time `json:"created_at"`
}

func NewPendingDeletionRepository(client *kivik.Client, dbName string) PendingDeletionRepository {
	return &pendingDeletionRepository{store{db: client.DB(dbName)}}
}

func (r *pendingDeletionRepository) List(ctx context.Context) ([]*domain.PendingDeletion, error) {
	var out []*domain.PendingDeletion
	err := r.find(ctx, map[string]interface{}{"doc_type": docTypePendingDeletion}, func(rows *kivik.ResultSet) error {
		var doc pendingDeletionDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return fmt.Errorf("failed to scan pending deletion: %w", err)
		}
		out = append(out, &domain.PendingDeletion{
			NoteID:    doc.NoteID,
			Tag:       doc.Tag,
			Purge:     doc.Purge,
			CreatedAt: doc.CreatedAt,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending deletions: %w", err)
	}
	return out, nil
}

func (r *pendingDeletionRepository) Save(ctx context.Context, pd *domain.PendingDeletion) error {
	id := docID(docTypePendingDeletion, pd.NoteID)
	rev, err := r.rev(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read pending deletion revision: %w", err)
	}

	doc := pendingDeletionDoc{
		ID:        id,
		Rev:       rev,
		DocType:   docTypePendingDeletion,
		NoteID:    pd.NoteID,
		Tag:       pd.Tag,
		Purge:     pd.Purge,
		CreatedAt: pd.CreatedAt,
	}
	if err := r.put(ctx, id, doc); err != nil {
		return fmt.Errorf("failed to save pending deletion %s: %w", pd.NoteID, err)
	}
	return nil
}

func (r *pendingDeletionRepository) Delete(ctx context.Context, noteID string) error {
	if err := r.remove(ctx, docID(docTypePendingDeletion, noteID)); err != nil {
		return fmt.Errorf("failed to delete pending deletion %s: %w", noteID, err)
	}
	return nil
}
