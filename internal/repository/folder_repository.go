package repository

import (
	"context"
	"fmt"
	"time"

	"notes-sync-client/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type FolderRepository interface {
	Get(ctx context.Context, id string) (*domain.Folder, error)
	List(ctx context.Context) ([]*domain.Folder, error)
	Save(ctx context.Context, folder *domain.Folder) error
	Delete(ctx context.Context, id string) error
	// DeleteNonSystem removes every folder that is not locally synthesized.
	DeleteNonSystem(ctx context.Context) (int, error)
	// ReplaceID moves the folder stored under oldID to folder.ID and repoints its notes.
	ReplaceID(ctx context.Context, oldID string, folder *domain.Folder) error
}

type folderRepository struct {
	store
}

type folderDoc struct {
	ID        string                    `json:"_id"`
	Rev       string                    `json:"_rev,omitempty"`
	DocType   string                    `json:"doc_type"`
	FolderID  string                    `json:"folder_id"`
	Name      string                    `json:"name"`
	Count     int                       `json:"count"`
	IsSystem  bool                      `json:"is_system"`
	IsPinned  bool                      `json:"is_pinned"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
	Mirror    domain.RemoteEntityMirror `json:"mirror"`
}

func NewFolderRepository(client *kivik.Client, dbName string) FolderRepository {
	return &folderRepository{store{db: client.DB(dbName)}}
}

func (r *folderRepository) Get(ctx context.Context, id string) (*domain.Folder, error) {
	var doc folderDoc
	if err := r.get(ctx, docID(docTypeFolder, id), &doc); err != nil {
		return nil, fmt.Errorf("failed to get folder %s: %w", id, err)
	}
	return docToFolder(&doc), nil
}

func (r *folderRepository) List(ctx context.Context) ([]*domain.Folder, error) {
	var folders []*domain.Folder
	err := r.find(ctx, map[string]interface{}{"doc_type": docTypeFolder}, func(rows *kivik.ResultSet) error {
		var doc folderDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, docToFolder(&doc))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}

func (r *folderRepository) Save(ctx context.Context, folder *domain.Folder) error {
	id := docID(docTypeFolder, folder.ID)
	rev, err := r.rev(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read folder revision: %w", err)
	}

	doc := folderToDoc(folder)
	doc.Rev = rev
	if err := r.put(ctx, id, doc); err != nil {
		return fmt.Errorf("failed to save folder %s: %w", folder.ID, err)
	}
	return nil
}

func (r *folderRepository) Delete(ctx context.Context, id string) error {
	if err := r.remove(ctx, docID(docTypeFolder, id)); err != nil {
		return fmt.Errorf("failed to delete folder %s: %w", id, err)
	}
	return nil
}

func (r *folderRepository) DeleteNonSystem(ctx context.Context) (int, error) {
	n, err := r.purge(ctx, map[string]interface{}{
		"doc_type":  docTypeFolder,
		"is_system": false,
	})
	if err != nil {
		return n, fmt.Errorf("failed to delete folders: %w", err)
	}
	return n, nil
}

func (r *folderRepository) ReplaceID(ctx context.Context, oldID string, folder *domain.Folder) error {
	oldDocID := docID(docTypeFolder, oldID)
	newDocID := docID(docTypeFolder, folder.ID)

	oldRev, err := r.rev(ctx, oldDocID)
	if err != nil {
		return fmt.Errorf("failed to read folder revision: %w", err)
	}
	newRev, err := r.rev(ctx, newDocID)
	if err != nil {
		return fmt.Errorf("failed to read folder revision: %w", err)
	}

	doc := folderToDoc(folder)
	doc.Rev = newRev
	docs := []interface{}{doc}
	if oldRev != "" && oldDocID != newDocID {
		docs = append(docs, revDoc{ID: oldDocID, Rev: oldRev, Deleted: true})
	}

	// Notes referencing the old id move in the same request.
	err = r.find(ctx, map[string]interface{}{"doc_type": docTypeNote, "folder_id": oldID}, func(rows *kivik.ResultSet) error {
		var note noteDoc
		if err := rows.ScanDoc(&note); err != nil {
			return fmt.Errorf("failed to scan note: %w", err)
		}
		note.FolderID = folder.ID
		docs = append(docs, &note)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to list notes of folder %s: %w", oldID, err)
	}

	if err := r.bulk(ctx, docs); err != nil {
		return fmt.Errorf("failed to replace folder id %s -> %s: %w", oldID, folder.ID, err)
	}
	return nil
}

func folderToDoc(f *domain.Folder) *folderDoc {
	return &folderDoc{
		ID:        docID(docTypeFolder, f.ID),
		DocType:   docTypeFolder,
		FolderID:  f.ID,
		Name:      f.Name,
		Count:     f.Count,
		IsSystem:  f.IsSystem,
		IsPinned:  f.IsPinned,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		Mirror:    f.Mirror,
	}
}

func docToFolder(doc *folderDoc) *domain.Folder {
	return &domain.Folder{
		ID:        doc.FolderID,
		Name:      doc.Name,
		Count:     doc.Count,
		IsSystem:  doc.IsSystem,
		IsPinned:  doc.IsPinned,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
		Mirror:    doc.Mirror,
	}
}
