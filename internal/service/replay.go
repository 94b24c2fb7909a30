package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/remote"
	"notes-sync-client/internal/repository"
)

// OperationExecutor performs the remote side effect of one queued operation.
type OperationExecutor interface {
	Execute(ctx context.Context, op *domain.OfflineOperation) error
}

type remoteExecutor struct {
	repos            Repositories
	remote           remote.Client
	resolver         *Resolver
	queue            *OperationQueue
	assetConcurrency int
	logger           *slog.Logger
	now              func() time.Time
}

func newRemoteExecutor(repos Repositories, client remote.Client, resolver *Resolver, queue *OperationQueue, assetConcurrency int, logger *slog.Logger) *remoteExecutor {
	return &remoteExecutor{
		repos:            repos,
		remote:           client,
		resolver:         resolver,
		queue:            queue,
		assetConcurrency: assetConcurrency,
		logger:           logger.With("component", "replay"),
		now:              time.Now,
	}
}

func (e *remoteExecutor) Execute(ctx context.Context, op *domain.OfflineOperation) error {
	switch op.Type {
	case domain.OpCreateNote:
		return e.createNote(ctx, op)
	case domain.OpUpdateNote:
		return e.updateNote(ctx, op)
	case domain.OpDeleteNote:
		return e.deleteNote(ctx, op)
	case domain.OpUploadImage:
		return e.uploadImage(ctx, op)
	case domain.OpCreateFolder:
		return e.createFolder(ctx, op)
	case domain.OpRenameFolder:
		return e.renameFolder(ctx, op)
	case domain.OpDeleteFolder:
		return e.deleteFolder(ctx, op)
	default:
		return fmt.Errorf("unknown operation type %q", op.Type)
	}
}

func (e *remoteExecutor) createNote(ctx context.Context, op *domain.OfflineOperation) error {
	note, err := e.loadNote(ctx, op.TargetID, true)
	if err != nil || note == nil {
		return err
	}

	res, err := e.remote.CreateNote(ctx, note)
	if err != nil {
		return err
	}
	return e.adoptCreatedNote(ctx, note, res)
}

// adoptCreatedNote stores the server identity of a freshly created note, moving it
// off its temporary id when the remote assigned a different one.
func (e *remoteExecutor) adoptCreatedNote(ctx context.Context, note *domain.Note, res *remote.CreateResult) error {
	note.Mirror.RevisionTag = res.Tag
	if note.Mirror.CreatedAtRemote.IsZero() {
		note.Mirror.CreatedAtRemote = e.now()
	}

	oldID := note.ID
	if res.ServerID == "" || res.ServerID == oldID {
		return e.repos.Notes.Save(ctx, note)
	}

	note.ID = res.ServerID
	if err := e.repos.Notes.ReplaceID(ctx, oldID, note); err != nil {
		return err
	}
	if err := e.queue.RetargetNote(ctx, oldID, res.ServerID); err != nil {
		return err
	}
	e.logger.Info("note id replaced", "old", oldID, "new", res.ServerID)
	return nil
}

// loadNote reads the local note an operation targets. A note deleted locally after
// the operation was queued yields nil. A missing note that was never uploaded, or one a
// create targets, is an error: deleting such a note drops its operations, so the note
// was lost rather than removed.
func (e *remoteExecutor) loadNote(ctx context.Context, id string, create bool) (*domain.Note, error) {
	note, err := e.repos.Notes.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		if create || domain.IsTemporaryID(id) {
			return nil, fmt.Errorf("note %s missing locally: %w", id, ErrNoteNotFound)
		}
		e.logger.Info("note removed before replay", "id", id)
		return nil, nil
	}
	return note, err
}

func (e *remoteExecutor) updateNote(ctx context.Context, op *domain.OfflineOperation) error {
	note, err := e.loadNote(ctx, op.TargetID, false)
	if err != nil || note == nil {
		return err
	}
	if note.IsTemporary() {
		return fmt.Errorf("note %s has not been created remotely yet", note.ID)
	}

	newTag, err := e.remote.UpdateNote(ctx, note.ID, note.Tag(), note)
	switch remote.Classify(err) {
	case remote.KindNone:
		note.Mirror.RevisionTag = newTag
		return e.repos.Notes.Save(ctx, note)
	case remote.KindConflict:
		return e.resolveNoteConflict(ctx, note)
	case remote.KindNotFound:
		// Deleted remotely while edited here: recreate so the edit survives.
		res, err := e.remote.CreateNote(ctx, note)
		if err != nil {
			return err
		}
		return e.adoptCreatedNote(ctx, note, res)
	default:
		return err
	}
}

// resolveNoteConflict re-fetches the remote note and reconciles once. Local wins only
// when it is newer beyond the tolerance, in which case the upload is retried with the
// fresh tag.
func (e *remoteExecutor) resolveNoteConflict(ctx context.Context, note *domain.Note) error {
	fresh, err := e.remote.FetchDetail(ctx, note.ID)
	if err != nil {
		return fmt.Errorf("refetch %s after conflict: %w", note.ID, err)
	}

	action := e.resolver.Reconcile(note, fresh, domain.PendingIntents{})
	e.logger.Info("update conflict reconciled", "id", note.ID, "action", action)

	if action != domain.ActionKeepLocalAndEnqueueUpload {
		if err := fetchAssets(ctx, e.remote, e.repos.Assets, fresh.AssetIDs, e.assetConcurrency); err != nil {
			e.logger.Warn("asset download failed", "id", fresh.ID, "error", err)
		}
		return e.repos.Notes.Save(ctx, fresh)
	}

	newTag, err := e.remote.UpdateNote(ctx, note.ID, fresh.Tag(), note)
	if err != nil {
		return err
	}
	note.Mirror.RevisionTag = newTag
	return e.repos.Notes.Save(ctx, note)
}

func (e *remoteExecutor) deleteNote(ctx context.Context, op *domain.OfflineOperation) error {
	if domain.IsTemporaryID(op.TargetID) {
		return nil
	}

	p, err := decodePayload[domain.DeletePayload](op)
	if err != nil {
		return err
	}

	err = e.remote.DeleteNote(ctx, op.TargetID, p.Tag, p.Purge)
	switch remote.Classify(err) {
	case remote.KindNone, remote.KindNotFound:
		return nil
	case remote.KindConflict:
	default:
		return err
	}

	fresh, err := e.remote.FetchDetail(ctx, op.TargetID)
	if remote.Classify(err) == remote.KindNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("refetch %s after conflict: %w", op.TargetID, err)
	}

	if e.resolver.Reconcile(nil, fresh, domain.PendingIntents{Delete: true}) != domain.ActionDeleteRemote {
		return fmt.Errorf("delete of %s not confirmed after conflict", op.TargetID)
	}
	err = e.remote.DeleteNote(ctx, op.TargetID, fresh.Tag(), p.Purge)
	if remote.Classify(err) == remote.KindNotFound {
		return nil
	}
	return err
}

func (e *remoteExecutor) uploadImage(ctx context.Context, op *domain.OfflineOperation) error {
	p, err := decodePayload[domain.ImagePayload](op)
	if err != nil {
		return err
	}

	note, err := e.loadNote(ctx, op.TargetID, false)
	if err != nil || note == nil {
		return err
	}

	assetID, err := e.remote.UploadAsset(ctx, p.FileName, p.Data)
	if err != nil {
		return err
	}
	if e.repos.Assets != nil {
		if err := e.repos.Assets.Put(assetID, p.Data); err != nil {
			e.logger.Warn("failed to cache uploaded asset", "asset", assetID, "error", err)
		}
	}

	note.AssetIDs = append(note.AssetIDs, assetID)
	note.UpdatedAt = e.now()
	if err := e.repos.Notes.Save(ctx, note); err != nil {
		return err
	}

	// A pending create carries the asset list itself.
	if note.IsTemporary() {
		return nil
	}
	update, err := NewOperation(domain.OpUpdateNote, note.ID, domain.NotePayloadFrom(note))
	if err != nil {
		return err
	}
	_, err = e.queue.Enqueue(ctx, update)
	return err
}

func (e *remoteExecutor) createFolder(ctx context.Context, op *domain.OfflineOperation) error {
	folder, err := e.repos.Folders.Get(ctx, op.TargetID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	res, err := e.remote.CreateFolder(ctx, folder)
	if err != nil {
		return err
	}

	folder.Mirror.RevisionTag = res.Tag
	oldID := folder.ID
	if res.ServerID == "" || res.ServerID == oldID {
		return e.repos.Folders.Save(ctx, folder)
	}

	folder.ID = res.ServerID
	if err := e.repos.Folders.ReplaceID(ctx, oldID, folder); err != nil {
		return err
	}
	if err := e.queue.RetargetFolder(ctx, oldID, res.ServerID); err != nil {
		return err
	}
	e.logger.Info("folder id replaced", "old", oldID, "new", res.ServerID)
	return nil
}

func (e *remoteExecutor) renameFolder(ctx context.Context, op *domain.OfflineOperation) error {
	folder, err := e.repos.Folders.Get(ctx, op.TargetID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if domain.IsTemporaryID(folder.ID) {
		return fmt.Errorf("folder %s has not been created remotely yet", folder.ID)
	}

	newTag, err := retryWithCurrentTag(folder.Tag(), func(tag string) (string, error) {
		return e.remote.RenameFolder(ctx, folder.ID, tag, folder.Name)
	})
	if err != nil {
		return err
	}

	folder.Mirror.RevisionTag = newTag
	return e.repos.Folders.Save(ctx, folder)
}

func (e *remoteExecutor) deleteFolder(ctx context.Context, op *domain.OfflineOperation) error {
	if domain.IsTemporaryID(op.TargetID) {
		return nil
	}

	p, err := decodePayload[domain.DeletePayload](op)
	if err != nil {
		return err
	}

	_, err = retryWithCurrentTag(p.Tag, func(tag string) (string, error) {
		return "", e.remote.DeleteFolder(ctx, op.TargetID, tag)
	})
	if remote.Classify(err) == remote.KindNotFound {
		return nil
	}
	return err
}

// retryWithCurrentTag retries call once with the tag reported by a conflict response.
func retryWithCurrentTag(tag string, call func(tag string) (string, error)) (string, error) {
	out, err := call(tag)
	var conflict *remote.ConflictError
	if !errors.As(err, &conflict) || conflict.CurrentTag == "" || conflict.CurrentTag == tag {
		return out, err
	}
	return call(conflict.CurrentTag)
}

func decodePayload[T any](op *domain.OfflineOperation) (T, error) {
	var p T
	if len(op.Payload) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(op.Payload, &p); err != nil {
		return p, fmt.Errorf("failed to decode %s payload: %w", op.Type, err)
	}
	return p, nil
}
