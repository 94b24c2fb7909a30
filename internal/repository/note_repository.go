package repository

import (
	"context"
	"fmt"
	"time"

	"notes-sync-client/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type NoteRepository interface {
	Get(ctx context.Context, id string) (*domain.Note, error)
	List(ctx context.Context) ([]*domain.Note, error)
	ListByFolder(ctx context.Context, folderID string) ([]*domain.Note, error)
	Save(ctx context.Context, note *domain.Note) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int, error)
	// ReplaceID moves the note stored under oldID to note.ID in a single write.
	ReplaceID(ctx context.Context, oldID string, note *domain.Note) error
}

type noteRepository struct {
	store
}

type noteDoc struct {
	ID        string                    `json:"_id"`
	Rev       string                    `json:"_rev,omitempty"`
	DocType   string                    `json:"doc_type"`
	NoteID    string                    `json:"note_id"`
	Title     string                    `json:"title"`
	Content   string                    `json:"content"`
	FolderID  string                    `json:"folder_id"`
	IsStarred bool                      `json:"is_starred"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
	Tags      []string                  `json:"tags"`
	AssetIDs  []string                  `json:"asset_ids,omitempty"`
	Mirror    domain.RemoteEntityMirror `json:"mirror"`
}

func NewNoteRepository(client *kivik.Client, dbName string) NoteRepository {
	return &noteRepository{store{db: client.DB(dbName)}}
}

func (r *noteRepository) Get(ctx context.Context, id string) (*domain.Note, error) {
	var doc noteDoc
	if err := r.get(ctx, docID(docTypeNote, id), &doc); err != nil {
		return nil, fmt.Errorf("failed to get note %s: %w", id, err)
	}
	return docToNote(&doc), nil
}

func (r *noteRepository) List(ctx context.Context) ([]*domain.Note, error) {
	return r.list(ctx, map[string]interface{}{"doc_type": docTypeNote})
}

func (r *noteRepository) ListByFolder(ctx context.Context, folderID string) ([]*domain.Note, error) {
	return r.list(ctx, map[string]interface{}{
		"doc_type":  docTypeNote,
		"folder_id": folderID,
	})
}

func (r *noteRepository) list(ctx context.Context, selector map[string]interface{}) ([]*domain.Note, error) {
	var notes []*domain.Note
	err := r.find(ctx, selector, func(rows *kivik.ResultSet) error {
		var doc noteDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, docToNote(&doc))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

func (r *noteRepository) Save(ctx context.Context, note *domain.Note) error {
	id := docID(docTypeNote, note.ID)
	rev, err := r.rev(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read note revision: %w", err)
	}

	doc := noteToDoc(note)
	doc.Rev = rev
	if err := r.put(ctx, id, doc); err != nil {
		return fmt.Errorf("failed to save note %s: %w", note.ID, err)
	}
	return nil
}

func (r *noteRepository) Delete(ctx context.Context, id string) error {
	if err := r.remove(ctx, docID(docTypeNote, id)); err != nil {
		return fmt.Errorf("failed to delete note %s: %w", id, err)
	}
	return nil
}

func (r *noteRepository) DeleteAll(ctx context.Context) (int, error) {
	n, err := r.purge(ctx, map[string]interface{}{"doc_type": docTypeNote})
	if err != nil {
		return n, fmt.Errorf("failed to delete notes: %w", err)
	}
	return n, nil
}

func (r *noteRepository) ReplaceID(ctx context.Context, oldID string, note *domain.Note) error {
	oldDocID := docID(docTypeNote, oldID)
	newDocID := docID(docTypeNote, note.ID)

	oldRev, err := r.rev(ctx, oldDocID)
	if err != nil {
		return fmt.Errorf("failed to read note revision: %w", err)
	}
	newRev, err := r.rev(ctx, newDocID)
	if err != nil {
		return fmt.Errorf("failed to read note revision: %w", err)
	}

	doc := noteToDoc(note)
	doc.Rev = newRev
	docs := []interface{}{doc}
	if oldRev != "" && oldDocID != newDocID {
		docs = append(docs, revDoc{ID: oldDocID, Rev: oldRev, Deleted: true})
	}

	if err := r.bulk(ctx, docs); err != nil {
		return fmt.Errorf("failed to replace note id %s -> %s: %w", oldID, note.ID, err)
	}
	return nil
}

func noteToDoc(n *domain.Note) *noteDoc {
	return &noteDoc{
		ID:        docID(docTypeNote, n.ID),
		DocType:   docTypeNote,
		NoteID:    n.ID,
		Title:     n.Title,
		Content:   n.Content,
		FolderID:  n.FolderID,
		IsStarred: n.IsStarred,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
		Tags:      n.Tags,
		AssetIDs:  n.AssetIDs,
		Mirror:    n.Mirror,
	}
}

func docToNote(doc *noteDoc) *domain.Note {
	return &domain.Note{
		ID:        doc.NoteID,
		Title:     doc.Title,
		Content:   doc.Content,
		FolderID:  doc.FolderID,
		IsStarred: doc.IsStarred,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
		Tags:      doc.Tags,
		AssetIDs:  doc.AssetIDs,
		Mirror:    doc.Mirror,
	}
}
