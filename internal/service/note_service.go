package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/remote"
	"notes-sync-client/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ChangeObserver is told about foreground edits so other views can refresh.
type ChangeObserver interface {
	OnNoteChanged(note *domain.Note)
	OnNoteDeleted(noteID string)
}

// NoteService is the foreground mutation path. Every edit is written locally first and
// then pushed to the remote directly when possible, or queued for replay.
type NoteService struct {
	repos           Repositories
	remote          remote.Client
	queue           *OperationQueue
	session         Session
	privateFolderID string
	observer        ChangeObserver
	validate        *validator.Validate
	logger          *slog.Logger
	now             func() time.Time
}

func NewNoteService(
	repos Repositories,
	client remote.Client,
	queue *OperationQueue,
	session Session,
	privateFolderID string,
	logger *slog.Logger,
) *NoteService {
	if privateFolderID == "" {
		privateFolderID = domain.DefaultPrivateFolderID
	}
	return &NoteService{
		repos:           repos,
		remote:          client,
		queue:           queue,
		session:         session,
		privateFolderID: privateFolderID,
		validate:        validator.New(),
		logger:          logger.With("component", "notes"),
		now:             time.Now,
	}
}

func (s *NoteService) SetObserver(o ChangeObserver) {
	s.observer = o
}

func newTemporaryID() string {
	return domain.TemporaryIDPrefix + uuid.New().String()
}

// List returns the notes of a folder, most recently edited first. The "all" and
// "starred" system folders are virtual.
func (s *NoteService) List(ctx context.Context, folderID string) ([]*domain.Note, error) {
	var notes []*domain.Note
	var err error

	switch folderID {
	case "", domain.FolderIDAll:
		notes, err = s.repos.Notes.List(ctx)
	case domain.FolderIDStarred:
		var all []*domain.Note
		all, err = s.repos.Notes.List(ctx)
		for _, n := range all {
			if n.IsStarred {
				notes = append(notes, n)
			}
		}
	default:
		notes, err = s.repos.Notes.ListByFolder(ctx, folderID)
	}
	if err != nil {
		return nil, err
	}

	slices.SortFunc(notes, func(a, b *domain.Note) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return notes, nil
}

func (s *NoteService) Get(ctx context.Context, id string) (*domain.Note, error) {
	note, err := s.repos.Notes.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoteNotFound
	}
	return note, err
}

func (s *NoteService) CreateNote(ctx context.Context, req *domain.CreateNoteRequest) (*domain.Note, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	folderID := req.FolderID
	if folderID == "" || folderID == domain.FolderIDStarred {
		folderID = domain.FolderIDAll
	}

	now := s.now()
	note := &domain.Note{
		ID:        newTemporaryID(),
		Title:     req.Title,
		Content:   req.Content,
		FolderID:  folderID,
		IsStarred: req.IsStarred || req.FolderID == domain.FolderIDStarred,
		CreatedAt: now,
		UpdatedAt: now,
		Tags:      req.Tags,
	}
	if err := s.repos.Notes.Save(ctx, note); err != nil {
		return nil, err
	}

	if canReachRemote(s.session) {
		res, err := s.remote.CreateNote(ctx, note)
		if err == nil {
			return s.adoptServerID(ctx, note, res)
		}
		s.logger.Warn("remote create failed, queueing", "id", note.ID, "error", err)
	}

	if err := s.enqueue(ctx, domain.OpCreateNote, note.ID, domain.NotePayloadFrom(note)); err != nil {
		return nil, err
	}
	s.notifyChanged(note)
	return note, nil
}

func (s *NoteService) adoptServerID(ctx context.Context, note *domain.Note, res *remote.CreateResult) (*domain.Note, error) {
	oldID := note.ID
	note.Mirror.RevisionTag = res.Tag
	note.Mirror.CreatedAtRemote = note.CreatedAt

	if res.ServerID != "" && res.ServerID != oldID {
		note.ID = res.ServerID
		if err := s.repos.Notes.ReplaceID(ctx, oldID, note); err != nil {
			return nil, err
		}
	} else if err := s.repos.Notes.Save(ctx, note); err != nil {
		return nil, err
	}

	s.notifyChanged(note)
	return note, nil
}

func (s *NoteService) UpdateNote(ctx context.Context, id string, req *domain.UpdateNoteRequest) (*domain.Note, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	note, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		note.Title = *req.Title
	}
	if req.Content != nil {
		note.Content = *req.Content
	}
	if req.FolderID != nil {
		note.FolderID = *req.FolderID
	}
	if req.IsStarred != nil {
		note.IsStarred = *req.IsStarred
	}
	if req.Tags != nil {
		note.Tags = req.Tags
	}
	note.UpdatedAt = s.now()

	if err := s.repos.Notes.Save(ctx, note); err != nil {
		return nil, err
	}
	return s.pushUpdate(ctx, note)
}

func (s *NoteService) pushUpdate(ctx context.Context, note *domain.Note) (*domain.Note, error) {
	if s.direct(ctx, note.ID, false) {
		newTag, err := s.remote.UpdateNote(ctx, note.ID, note.Tag(), note)
		if err == nil {
			note.Mirror.RevisionTag = newTag
			if err := s.repos.Notes.Save(ctx, note); err != nil {
				return nil, err
			}
			s.notifyChanged(note)
			return note, nil
		}
		s.logger.Warn("remote update failed, queueing", "id", note.ID, "error", err)
	}

	if err := s.enqueue(ctx, domain.OpUpdateNote, note.ID, domain.NotePayloadFrom(note)); err != nil {
		return nil, err
	}
	s.notifyChanged(note)
	return note, nil
}

// DeleteNote removes the note locally first. A remote delete that fails afterwards is
// remembered as a pending deletion.
func (s *NoteService) DeleteNote(ctx context.Context, id string, purge bool) error {
	note, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	direct := s.direct(ctx, note.ID, false)
	if err := s.repos.Notes.Delete(ctx, note.ID); err != nil {
		return err
	}
	s.notifyDeleted(note.ID)

	if direct {
		err := s.remote.DeleteNote(ctx, note.ID, note.Tag(), purge)
		kind := remote.Classify(err)
		if kind == remote.KindNone || kind == remote.KindNotFound {
			return nil
		}

		s.logger.Warn("remote delete failed, keeping pending deletion", "id", note.ID, "error", err)
		return s.repos.PendingDeletions.Save(ctx, &domain.PendingDeletion{
			NoteID:    note.ID,
			Tag:       note.Tag(),
			Purge:     purge,
			CreatedAt: s.now(),
		})
	}

	return s.enqueue(ctx, domain.OpDeleteNote, note.ID, domain.DeletePayload{Tag: note.Tag(), Purge: purge})
}

// UploadImage attaches an image to a note. Offline uploads are queued with their bytes.
func (s *NoteService) UploadImage(ctx context.Context, noteID string, req *domain.UploadImageRequest) (*domain.Note, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	note, err := s.Get(ctx, noteID)
	if err != nil {
		return nil, err
	}

	if s.direct(ctx, note.ID, false) {
		assetID, err := s.remote.UploadAsset(ctx, req.FileName, req.Data)
		if err == nil {
			if s.repos.Assets != nil {
				if err := s.repos.Assets.Put(assetID, req.Data); err != nil {
					s.logger.Warn("failed to cache asset", "asset", assetID, "error", err)
				}
			}
			note.AssetIDs = append(note.AssetIDs, assetID)
			note.UpdatedAt = s.now()
			if err := s.repos.Notes.Save(ctx, note); err != nil {
				return nil, err
			}
			return s.pushUpdate(ctx, note)
		}
		s.logger.Warn("remote upload failed, queueing", "id", note.ID, "error", err)
	}

	payload := domain.ImagePayload{NoteID: note.ID, FileName: req.FileName, Data: req.Data}
	if err := s.enqueue(ctx, domain.OpUploadImage, note.ID, payload); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *NoteService) ListFolders(ctx context.Context) ([]*domain.Folder, error) {
	folders, err := s.repos.Folders.List(ctx)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(folders, func(a, b *domain.Folder) int {
		if a.IsSystem != b.IsSystem {
			if a.IsSystem {
				return -1
			}
			return 1
		}
		if a.IsPinned != b.IsPinned {
			if a.IsPinned {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return folders, nil
}

func (s *NoteService) CreateFolder(ctx context.Context, req *domain.CreateFolderRequest) (*domain.Folder, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	now := s.now()
	folder := &domain.Folder{
		ID:        newTemporaryID(),
		Name:      req.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repos.Folders.Save(ctx, folder); err != nil {
		return nil, err
	}

	if canReachRemote(s.session) {
		res, err := s.remote.CreateFolder(ctx, folder)
		if err == nil {
			folder.Mirror.RevisionTag = res.Tag
			oldID := folder.ID
			if res.ServerID != "" && res.ServerID != oldID {
				folder.ID = res.ServerID
				if err := s.repos.Folders.ReplaceID(ctx, oldID, folder); err != nil {
					return nil, err
				}
				return folder, nil
			}
			return folder, s.repos.Folders.Save(ctx, folder)
		}
		s.logger.Warn("remote folder create failed, queueing", "id", folder.ID, "error", err)
	}

	if err := s.enqueue(ctx, domain.OpCreateFolder, folder.ID, domain.FolderPayload{Name: folder.Name}); err != nil {
		return nil, err
	}
	return folder, nil
}

func (s *NoteService) RenameFolder(ctx context.Context, id string, req *domain.RenameFolderRequest) (*domain.Folder, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	folder, err := s.folder(ctx, id)
	if err != nil {
		return nil, err
	}

	folder.Name = req.Name
	folder.UpdatedAt = s.now()
	if err := s.repos.Folders.Save(ctx, folder); err != nil {
		return nil, err
	}

	if s.direct(ctx, folder.ID, true) {
		newTag, err := s.remote.RenameFolder(ctx, folder.ID, folder.Tag(), folder.Name)
		if err == nil {
			folder.Mirror.RevisionTag = newTag
			return folder, s.repos.Folders.Save(ctx, folder)
		}
		s.logger.Warn("remote rename failed, queueing", "id", folder.ID, "error", err)
	}

	payload := domain.FolderPayload{Name: folder.Name, Tag: folder.Tag()}
	if err := s.enqueue(ctx, domain.OpRenameFolder, folder.ID, payload); err != nil {
		return nil, err
	}
	return folder, nil
}

// DeleteFolder removes a folder and moves its notes to the "all notes" folder.
func (s *NoteService) DeleteFolder(ctx context.Context, id string) error {
	folder, err := s.folder(ctx, id)
	if err != nil {
		return err
	}

	notes, err := s.repos.Notes.ListByFolder(ctx, folder.ID)
	if err != nil {
		return err
	}
	for _, n := range notes {
		n.FolderID = domain.FolderIDAll
		if err := s.repos.Notes.Save(ctx, n); err != nil {
			return err
		}
	}

	direct := s.direct(ctx, folder.ID, true)
	if err := s.repos.Folders.Delete(ctx, folder.ID); err != nil {
		return err
	}

	if direct {
		err := s.remote.DeleteFolder(ctx, folder.ID, folder.Tag())
		kind := remote.Classify(err)
		if kind == remote.KindNone || kind == remote.KindNotFound {
			return nil
		}
		s.logger.Warn("remote folder delete failed, queueing", "id", folder.ID, "error", err)
	}

	return s.enqueue(ctx, domain.OpDeleteFolder, folder.ID, domain.DeletePayload{Tag: folder.Tag()})
}

func (s *NoteService) folder(ctx context.Context, id string) (*domain.Folder, error) {
	if domain.IsSystemFolderID(id, s.privateFolderID) {
		return nil, ErrSystemFolder
	}
	folder, err := s.repos.Folders.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrFolderNotFound
	}
	return folder, err
}

// direct reports whether an edit to an existing entity may go straight to the remote.
// Entities that were never uploaded or still have queued intents go through the queue
// so replay order is preserved.
func (s *NoteService) direct(ctx context.Context, id string, folder bool) bool {
	if domain.IsTemporaryID(id) || !canReachRemote(s.session) {
		return false
	}
	queued, err := s.queue.HasLive(ctx, id, folder)
	return err == nil && !queued
}

func (s *NoteService) enqueue(ctx context.Context, opType domain.OperationType, targetID string, payload any) error {
	op, err := NewOperation(opType, targetID, payload)
	if err != nil {
		return err
	}
	if _, err := s.queue.Enqueue(ctx, op); err != nil {
		return fmt.Errorf("failed to queue %s for %s: %w", opType, targetID, err)
	}
	return nil
}

func (s *NoteService) notifyChanged(note *domain.Note) {
	if s.observer != nil {
		s.observer.OnNoteChanged(note)
	}
}

func (s *NoteService) notifyDeleted(id string) {
	if s.observer != nil {
		s.observer.OnNoteDeleted(id)
	}
}
