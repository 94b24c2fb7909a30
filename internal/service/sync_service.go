package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/remote"
	"notes-sync-client/internal/repository"
)

// Repositories groups the local stores shared by the sync and foreground paths.
type Repositories struct {
	Notes            repository.NoteRepository
	Folders          repository.FolderRepository
	PendingDeletions repository.PendingDeletionRepository
	SyncStatus       repository.SyncStatusRepository
	Assets           repository.AssetStore
}

// SyncObserver receives progress snapshots and pass outcomes.
type SyncObserver interface {
	OnSyncProgress(progress domain.SyncProgress)
	OnSyncFinished(result *domain.SyncResult, err error)
}

type SyncOptions struct {
	PrivateFolderID  string
	AssetConcurrency int
}

// SyncService coordinates full and incremental passes. At most one pass runs at a time.
type SyncService struct {
	repos    Repositories
	remote   remote.Client
	queue    *OperationQueue
	resolver *Resolver
	executor OperationExecutor
	session  Session
	opts     SyncOptions
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	syncing   bool
	progress  domain.SyncProgress
	observer  SyncObserver
	cancelled atomic.Bool
}

func NewSyncService(
	repos Repositories,
	client remote.Client,
	queue *OperationQueue,
	resolver *Resolver,
	session Session,
	opts SyncOptions,
	logger *slog.Logger,
) *SyncService {
	if opts.PrivateFolderID == "" {
		opts.PrivateFolderID = domain.DefaultPrivateFolderID
	}
	if opts.AssetConcurrency <= 0 {
		opts.AssetConcurrency = 4
	}

	return &SyncService{
		repos:    repos,
		remote:   client,
		queue:    queue,
		resolver: resolver,
		executor: newRemoteExecutor(repos, client, resolver, queue, opts.AssetConcurrency, logger),
		session:  session,
		opts:     opts,
		logger:   logger.With("component", "sync"),
		now:      time.Now,
	}
}

func (s *SyncService) SetObserver(o SyncObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = o
}

func (s *SyncService) IsSyncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

func (s *SyncService) Progress() domain.SyncProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

func (s *SyncService) LastResult() *domain.SyncResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress.LastResult
}

// CancelSync asks the running pass to stop after its current remote call. It reports
// whether a pass was running.
func (s *SyncService) CancelSync() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.syncing {
		return false
	}
	s.cancelled.Store(true)
	s.progress.Message = "Cancelling"
	return true
}

// ResetSyncCursor forgets the sync cursor so the next pass is a full sync.
func (s *SyncService) ResetSyncCursor(ctx context.Context) error {
	if s.IsSyncing() {
		return ErrAlreadySyncing
	}
	if err := s.repos.SyncStatus.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info("sync cursor reset")
	return nil
}

func (s *SyncService) RunFullSync(ctx context.Context) (*domain.SyncResult, error) {
	result, err := s.begin(domain.SyncKindFull)
	if err != nil {
		return nil, err
	}

	err = s.fullSync(ctx, result)
	return s.finish(result, err)
}

func (s *SyncService) RunIncrementalSync(ctx context.Context) (*domain.SyncResult, error) {
	result, err := s.begin(domain.SyncKindIncremental)
	if err != nil {
		return nil, err
	}

	err = s.incrementalSync(ctx, result)
	return s.finish(result, err)
}

// ProcessOfflineQueue drains the offline queue and retries pending deletions. It is the
// connectivity-restored path and never runs alongside a sync pass.
func (s *SyncService) ProcessOfflineQueue(ctx context.Context) (*domain.SyncResult, error) {
	result, err := s.begin(domain.SyncKindReplay)
	if err != nil {
		return nil, err
	}

	err = s.replay(ctx, result)
	if err == nil {
		err = s.retryPendingDeletions(ctx, result)
	}
	if err == nil {
		err = s.recomputeFolderCounts(ctx)
	}
	return s.finish(result, err)
}

// begin is the single-flight guard: the check and the set happen under one lock.
func (s *SyncService) begin(kind domain.SyncKind) (*domain.SyncResult, error) {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		return nil, ErrAlreadySyncing
	}
	if err := s.session.AuthError(); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	s.syncing = true
	s.cancelled.Store(false)
	s.progress = domain.SyncProgress{
		IsSyncing:  true,
		Kind:       kind,
		Message:    "Starting",
		LastResult: s.progress.LastResult,
	}
	snapshot, observer := s.progress, s.observer
	s.mu.Unlock()

	if observer != nil {
		observer.OnSyncProgress(snapshot)
	}
	s.logger.Info("sync started", "kind", kind)

	return &domain.SyncResult{Kind: kind, StartedAt: s.now()}, nil
}

func (s *SyncService) finish(result *domain.SyncResult, err error) (*domain.SyncResult, error) {
	result.FinishedAt = s.now()

	s.mu.Lock()
	s.syncing = false
	s.progress.IsSyncing = false
	if err != nil {
		s.progress.LastError = err.Error()
		s.progress.Message = "Sync failed"
	} else {
		s.progress.Progress = 1
		s.progress.LastError = ""
		s.progress.LastResult = result
		s.progress.Message = "Sync complete"
	}
	observer := s.observer
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("sync failed", "kind", result.Kind, "error", err)
	} else {
		s.logger.Info("sync finished",
			"kind", result.Kind,
			"total", result.TotalNotes,
			"synced", result.SyncedNotes,
			"skipped", result.SkippedNotes,
			"mutations", result.LocalMutations,
			"replayed", result.ReplayedOperations,
			"failed_ops", result.FailedOperations,
			"duration", result.FinishedAt.Sub(result.StartedAt),
		)
	}
	if observer != nil {
		observer.OnSyncFinished(result, err)
	}

	if err != nil {
		return nil, err
	}
	return result, nil
}

// setProgress publishes a progress step. The fraction never moves backwards within a pass.
func (s *SyncService) setProgress(fraction float64, message string) {
	s.mu.Lock()
	if fraction > s.progress.Progress {
		s.progress.Progress = min(fraction, 1)
	}
	s.progress.Message = message
	snapshot, observer := s.progress, s.observer
	s.mu.Unlock()

	if observer != nil {
		observer.OnSyncProgress(snapshot)
	}
}

func (s *SyncService) checkCancelled(ctx context.Context) error {
	if s.cancelled.Load() || ctx.Err() != nil {
		return ErrSyncCancelled
	}
	return nil
}

func (s *SyncService) fullSync(ctx context.Context, result *domain.SyncResult) error {
	result.Kind = domain.SyncKindFull
	s.setProgress(0.01, "Clearing local notes")

	intents, err := s.queue.Intents(ctx)
	if err != nil {
		return err
	}
	if err := s.clearLocal(ctx, intents); err != nil {
		return err
	}
	if err := s.ensureSystemFolders(ctx); err != nil {
		return err
	}

	status := domain.NewSyncStatus()

	syncTag, err := s.pullListing(ctx, result, status, intents, s.remote.ListPage, "", 0.05, 0.8)
	if err != nil {
		return err
	}

	privateTag, err := s.pullListing(ctx, result, status, intents, s.remote.ListPrivatePage, s.opts.PrivateFolderID, 0.8, 0.95)
	if err != nil {
		return err
	}
	if syncTag == "" {
		syncTag = privateTag
	}

	s.setProgress(0.96, "Updating folders")
	if err := s.recomputeFolderCounts(ctx); err != nil {
		return err
	}

	now := s.now()
	status.SyncTag = syncTag
	status.LastSyncTime = now
	if status.LastPageSyncTime.IsZero() {
		status.LastPageSyncTime = now
	}
	return s.repos.SyncStatus.Save(ctx, status)
}

// clearLocal removes the local notes and non-system folders a full sync replaces.
// Entities with queued intents are kept so the queue can still replay them.
func (s *SyncService) clearLocal(ctx context.Context, intents IntentSnapshot) error {
	if intents.empty() {
		if _, err := s.repos.Notes.DeleteAll(ctx); err != nil {
			return err
		}
		_, err := s.repos.Folders.DeleteNonSystem(ctx)
		return err
	}

	notes, err := s.repos.Notes.List(ctx)
	if err != nil {
		return err
	}
	kept := 0
	for _, n := range notes {
		if intents.Note(n.ID).Any() {
			kept++
			continue
		}
		if err := s.repos.Notes.Delete(ctx, n.ID); err != nil {
			return err
		}
	}

	folders, err := s.repos.Folders.List(ctx)
	if err != nil {
		return err
	}
	for _, f := range folders {
		if f.IsSystem || intents.Folder(f.ID).Any() {
			continue
		}
		if err := s.repos.Folders.Delete(ctx, f.ID); err != nil {
			return err
		}
	}

	s.logger.Info("kept notes with queued changes", "count", kept)
	return nil
}

type listFunc func(ctx context.Context, cursor string) (*remote.Page, error)

// pullListing pages through one listing until it is exhausted, persisting every note.
// Progress moves from start towards end as pages arrive.
func (s *SyncService) pullListing(
	ctx context.Context,
	result *domain.SyncResult,
	status *domain.SyncStatus,
	intents IntentSnapshot,
	list listFunc,
	forcedFolderID string,
	start, end float64,
) (string, error) {
	var syncTag, cursor string

	for pageNo := 1; ; pageNo++ {
		if err := s.checkCancelled(ctx); err != nil {
			return "", err
		}

		page, err := list(ctx, cursor)
		if err != nil {
			return "", passError(err)
		}
		if page.SyncTag != "" {
			syncTag = page.SyncTag
		}

		for _, f := range page.Folders {
			if domain.IsSystemFolderID(f.ID, s.opts.PrivateFolderID) || intents.Folder(f.ID).Any() {
				continue
			}
			if err := s.repos.Folders.Save(ctx, f); err != nil {
				return "", err
			}
		}

		result.TotalNotes += len(page.Notes) + page.Malformed
		result.SkippedNotes += page.Malformed

		for _, entry := range page.Notes {
			if err := s.checkCancelled(ctx); err != nil {
				return "", err
			}

			// Queued local changes win over the listing until they are replayed.
			if in := intents.Note(entry.ID); in.Any() {
				result.SyncedNotes++
				if !in.Delete {
					status.SyncedNoteIDs[entry.ID] = true
				}
				continue
			}

			err := s.pullNote(ctx, entry, forcedFolderID)
			if isPassLevel(err) {
				return "", passError(err)
			}
			if err != nil {
				result.SkippedNotes++
				s.logger.Warn("skipping note", "id", entry.ID, "error", err)
				continue
			}

			result.SyncedNotes++
			status.SyncedNoteIDs[entry.ID] = true
		}
		status.LastPageSyncTime = s.now()

		fraction := start + (end-start)*float64(pageNo)/float64(pageNo+1)
		s.setProgress(fraction, fmt.Sprintf("Synced %d notes", result.SyncedNotes))

		if page.NextCursor == "" {
			return syncTag, nil
		}
		cursor = page.NextCursor
	}
}

// pullNote fetches the full note, downloads its assets and persists it. Any failure
// other than an expired session is entity-level.
func (s *SyncService) pullNote(ctx context.Context, entry *domain.Note, forcedFolderID string) error {
	detail, err := s.remote.FetchDetail(ctx, entry.ID)
	if err != nil {
		if isPassLevel(err) {
			return err
		}
		return &InvalidRemoteDataError{EntityID: entry.ID, Cause: err}
	}

	if detail.Mirror.RevisionTag == "" {
		detail.Mirror.RevisionTag = entry.Tag()
	}
	if forcedFolderID != "" {
		detail.FolderID = forcedFolderID
	}
	if detail.FolderID == "" {
		detail.FolderID = entry.FolderID
	}

	if err := fetchAssets(ctx, s.remote, s.repos.Assets, detail.AssetIDs, s.opts.AssetConcurrency); err != nil {
		if isPassLevel(err) {
			return err
		}
		s.logger.Warn("asset download failed", "id", detail.ID, "error", err)
	}

	return s.repos.Notes.Save(ctx, detail)
}

func (s *SyncService) incrementalSync(ctx context.Context, result *domain.SyncResult) error {
	// An empty tag is a valid cursor: the feed reports everything since the last pass.
	status, err := s.repos.SyncStatus.Get(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Info("no sync cursor, running full sync")
		return s.fullSync(ctx, result)
	}
	if err != nil {
		return err
	}

	s.setProgress(0.05, "Fetching changes")
	changes, err := s.remote.ListChanges(ctx, status.SyncTag)
	if err != nil {
		return passError(err)
	}

	intents, err := s.queue.Intents(ctx)
	if err != nil {
		return err
	}

	next := status.Clone()
	result.TotalNotes = len(changes.Notes) + changes.Malformed
	result.SkippedNotes = changes.Malformed

	s.setProgress(0.15, "Reconciling folders")
	if err := s.reconcileFolders(ctx, result, changes, intents); err != nil {
		return err
	}

	s.setProgress(0.3, "Reconciling notes")
	if err := s.reconcileNotes(ctx, result, changes, intents, next); err != nil {
		return err
	}

	s.setProgress(0.7, "Replaying offline changes")
	if err := s.replay(ctx, result); err != nil {
		return err
	}

	s.setProgress(0.85, "Retrying deletions")
	if err := s.retryPendingDeletions(ctx, result); err != nil {
		return err
	}

	if err := s.recomputeFolderCounts(ctx); err != nil {
		return err
	}
	if err := s.checkCancelled(ctx); err != nil {
		return err
	}

	now := s.now()
	next.SyncTag = changes.SyncTag
	next.LastSyncTime = now
	next.LastPageSyncTime = now
	return s.repos.SyncStatus.Save(ctx, next)
}

func (s *SyncService) reconcileFolders(ctx context.Context, result *domain.SyncResult, changes *remote.ChangePage, intents IntentSnapshot) error {
	locals, err := s.repos.Folders.List(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]*domain.Folder, len(locals))
	for _, f := range locals {
		byID[f.ID] = f
	}

	for _, rf := range changes.Folders {
		if domain.IsSystemFolderID(rf.ID, s.opts.PrivateFolderID) {
			continue
		}
		if err := s.checkCancelled(ctx); err != nil {
			return err
		}

		local := byID[rf.ID]
		action := s.resolver.ReconcileFolder(local, rf, intents.Folder(rf.ID))
		if err := s.applyFolderAction(ctx, result, action, local, rf); err != nil {
			return err
		}
		delete(byID, rf.ID)
	}

	for _, id := range changes.DeletedFolderIDs {
		local := byID[id]
		if local == nil || local.IsSystem {
			continue
		}
		action := s.resolver.ReconcileFolder(local, nil, intents.Folder(id))
		if err := s.applyFolderAction(ctx, result, action, local, nil); err != nil {
			return err
		}
		delete(byID, id)
	}

	// Folders created offline and never uploaded.
	for id, local := range byID {
		if local.IsSystem || !domain.IsTemporaryID(id) {
			continue
		}
		action := s.resolver.ReconcileFolder(local, nil, intents.Folder(id))
		if err := s.applyFolderAction(ctx, result, action, local, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *SyncService) applyFolderAction(ctx context.Context, result *domain.SyncResult, action domain.Action, local, rf *domain.Folder) error {
	switch action {
	case domain.ActionNoOp:
		if local != nil && rf != nil && local.Tag() != rf.Tag() {
			local.Mirror = rf.Mirror
			return s.repos.Folders.Save(ctx, local)
		}
		return nil

	case domain.ActionTakeRemote, domain.ActionAdoptRemoteIntoLocal:
		if local != nil {
			rf.IsPinned = local.IsPinned
			rf.Count = local.Count
		}
		result.LocalMutations++
		return s.repos.Folders.Save(ctx, rf)

	case domain.ActionKeepLocalAndEnqueueUpload:
		if rf != nil {
			local.Mirror.RevisionTag = rf.Tag()
			if err := s.repos.Folders.Save(ctx, local); err != nil {
				return err
			}
		}
		opType := domain.OpRenameFolder
		if rf == nil {
			opType = domain.OpCreateFolder
		}
		return s.enqueue(ctx, opType, local.ID, domain.FolderPayload{Name: local.Name, Tag: local.Tag()})

	case domain.ActionDeleteRemote:
		err := s.remote.DeleteFolder(ctx, rf.ID, rf.Tag())
		return s.afterRemoteDelete(ctx, result, rf.ID, true, err)

	case domain.ActionCreateRemote:
		return s.createNow(ctx, result, local.ID, true)

	case domain.ActionDeleteLocal:
		notes, err := s.repos.Notes.ListByFolder(ctx, local.ID)
		if err != nil {
			return err
		}
		for _, n := range notes {
			n.FolderID = domain.FolderIDAll
			if err := s.repos.Notes.Save(ctx, n); err != nil {
				return err
			}
		}
		result.LocalMutations++
		return s.repos.Folders.Delete(ctx, local.ID)
	}
	return nil
}

func (s *SyncService) reconcileNotes(
	ctx context.Context,
	result *domain.SyncResult,
	changes *remote.ChangePage,
	intents IntentSnapshot,
	next *domain.SyncStatus,
) error {
	locals, err := s.repos.Notes.List(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]*domain.Note, len(locals))
	for _, n := range locals {
		byID[n.ID] = n
	}

	seen := make(map[string]bool, len(changes.Notes)+len(changes.DeletedNoteIDs))
	total := len(changes.Notes)

	for i, rn := range changes.Notes {
		if err := s.checkCancelled(ctx); err != nil {
			return err
		}
		seen[rn.ID] = true

		local := byID[rn.ID]
		action := s.resolver.Reconcile(local, rn, intents.Note(rn.ID))
		err := s.applyNoteAction(ctx, result, action, local, rn)
		if isPassLevel(err) {
			return passError(err)
		}
		if err != nil {
			result.SkippedNotes++
			s.logger.Warn("skipping note", "id", rn.ID, "action", action, "error", err)
		} else {
			result.SyncedNotes++
		}

		if action == domain.ActionDeleteRemote {
			delete(next.SyncedNoteIDs, rn.ID)
		} else {
			next.SyncedNoteIDs[rn.ID] = true
		}
		s.setProgress(0.3+0.3*float64(i+1)/float64(total), fmt.Sprintf("Reconciled %d of %d notes", i+1, total))
	}

	for _, id := range changes.DeletedNoteIDs {
		seen[id] = true
		delete(next.SyncedNoteIDs, id)

		local := byID[id]
		if local == nil {
			continue
		}
		if err := s.reconcileLocalOnly(ctx, result, local, intents); err != nil {
			return err
		}
	}

	// Only a note still on a temporary id can be missing remotely without the change
	// feed saying so. Any other id was assigned by the remote.
	for id, local := range byID {
		if seen[id] || next.SyncedNoteIDs[id] {
			continue
		}
		if !local.IsTemporary() {
			next.SyncedNoteIDs[id] = true
			continue
		}
		if err := s.checkCancelled(ctx); err != nil {
			return err
		}
		if err := s.reconcileLocalOnly(ctx, result, local, intents); err != nil {
			return err
		}
	}
	return nil
}

func (s *SyncService) reconcileLocalOnly(ctx context.Context, result *domain.SyncResult, local *domain.Note, intents IntentSnapshot) error {
	action := s.resolver.Reconcile(local, nil, intents.Note(local.ID))
	err := s.applyNoteAction(ctx, result, action, local, nil)
	if isPassLevel(err) {
		return passError(err)
	}
	if err != nil {
		s.logger.Warn("local-only note not reconciled", "id", local.ID, "action", action, "error", err)
	}
	return nil
}

func (s *SyncService) applyNoteAction(ctx context.Context, result *domain.SyncResult, action domain.Action, local, rn *domain.Note) error {
	switch action {
	case domain.ActionNoOp:
		// Keep the most recently observed tag even when nothing else changed.
		if local != nil && rn != nil && local.Tag() != rn.Tag() {
			local.Mirror.RevisionTag = rn.Tag()
			return s.repos.Notes.Save(ctx, local)
		}
		return nil

	case domain.ActionTakeRemote, domain.ActionAdoptRemoteIntoLocal:
		if err := s.pullNote(ctx, rn, ""); err != nil {
			return err
		}
		result.LocalMutations++
		return nil

	case domain.ActionKeepLocalAndEnqueueUpload:
		opType := domain.OpCreateNote
		if rn != nil {
			local.Mirror.RevisionTag = rn.Tag()
			if err := s.repos.Notes.Save(ctx, local); err != nil {
				return err
			}
			opType = domain.OpUpdateNote
		}
		return s.enqueue(ctx, opType, local.ID, domain.NotePayloadFrom(local))

	case domain.ActionDeleteRemote:
		purge := false
		if ops, err := s.queue.Live(ctx, rn.ID, false); err == nil {
			for _, op := range ops {
				if op.Type == domain.OpDeleteNote {
					if p, err := decodePayload[domain.DeletePayload](op); err == nil {
						purge = p.Purge
					}
				}
			}
		}
		err := s.remote.DeleteNote(ctx, rn.ID, rn.Tag(), purge)
		return s.afterRemoteDelete(ctx, result, rn.ID, false, err)

	case domain.ActionCreateRemote:
		return s.createNow(ctx, result, local.ID, false)

	case domain.ActionDeleteLocal:
		if err := s.repos.Notes.Delete(ctx, local.ID); err != nil {
			return err
		}
		result.DeletedLocal++
		result.LocalMutations++
		return nil
	}
	return nil
}

func (s *SyncService) enqueue(ctx context.Context, opType domain.OperationType, targetID string, payload any) error {
	op, err := NewOperation(opType, targetID, payload)
	if err != nil {
		return err
	}
	_, err = s.queue.Enqueue(ctx, op)
	return err
}

// afterRemoteDelete settles the queued delete for id once the remote call returned.
func (s *SyncService) afterRemoteDelete(ctx context.Context, result *domain.SyncResult, id string, folder bool, callErr error) error {
	kind := remote.Classify(callErr)
	if kind != remote.KindNone && kind != remote.KindNotFound {
		// The queued delete stays and is retried during replay.
		return callErr
	}

	result.DeletedRemote++
	ops, err := s.queue.Live(ctx, id, folder)
	if err != nil {
		return err
	}
	for _, op := range ops {
		if op.Type.IsDelete() {
			if err := s.queue.MarkCompleted(ctx, op.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// createNow uploads a locally created entity through its queued create operation.
func (s *SyncService) createNow(ctx context.Context, result *domain.SyncResult, id string, folder bool) error {
	ops, err := s.queue.Live(ctx, id, folder)
	if err != nil {
		return err
	}

	for _, op := range ops {
		if !op.Type.IsCreate() {
			continue
		}
		if err := s.executor.Execute(ctx, op); err != nil {
			if ferr := s.queue.MarkFailed(ctx, op.ID, err); ferr != nil {
				return ferr
			}
			return err
		}
		result.Uploaded++
		return s.queue.MarkCompleted(ctx, op.ID)
	}
	return nil
}

func (s *SyncService) replay(ctx context.Context, result *domain.SyncResult) error {
	if err := s.checkCancelled(ctx); err != nil {
		return err
	}

	stats, err := s.queue.Replay(ctx, s.executor)
	result.ReplayedOperations += stats.Replayed
	result.FailedOperations += stats.Failed
	result.Uploaded += stats.Replayed
	if errors.Is(err, context.Canceled) {
		return ErrSyncCancelled
	}
	return err
}

// retryPendingDeletions re-issues remote deletes for notes already removed locally.
func (s *SyncService) retryPendingDeletions(ctx context.Context, result *domain.SyncResult) error {
	pending, err := s.repos.PendingDeletions.List(ctx)
	if err != nil {
		return err
	}

	for _, pd := range pending {
		if err := s.checkCancelled(ctx); err != nil {
			return err
		}

		_, err := retryWithCurrentTag(pd.Tag, func(tag string) (string, error) {
			return "", s.remote.DeleteNote(ctx, pd.NoteID, tag, pd.Purge)
		})
		switch remote.Classify(err) {
		case remote.KindNone, remote.KindNotFound:
			if err := s.repos.PendingDeletions.Delete(ctx, pd.NoteID); err != nil {
				return err
			}
			result.DeletedRemote++
		case remote.KindAuthExpired:
			return passError(err)
		default:
			s.logger.Warn("pending deletion retry failed", "id", pd.NoteID, "error", err)
		}
	}
	return nil
}

func (s *SyncService) ensureSystemFolders(ctx context.Context) error {
	for _, f := range domain.SystemFolders(s.opts.PrivateFolderID) {
		if _, err := s.repos.Folders.Get(ctx, f.ID); err == nil {
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		f.CreatedAt = s.now()
		if err := s.repos.Folders.Save(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// recomputeFolderCounts derives every folder count from the local notes.
func (s *SyncService) recomputeFolderCounts(ctx context.Context) error {
	if err := s.ensureSystemFolders(ctx); err != nil {
		return err
	}

	notes, err := s.repos.Notes.List(ctx)
	if err != nil {
		return err
	}
	folders, err := s.repos.Folders.List(ctx)
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	for _, n := range notes {
		counts[n.FolderID]++
		if n.IsStarred {
			counts[domain.FolderIDStarred]++
		}
	}
	counts[domain.FolderIDAll] = len(notes)

	for _, f := range folders {
		if f.Count == counts[f.ID] {
			continue
		}
		f.Count = counts[f.ID]
		if err := s.repos.Folders.Save(ctx, f); err != nil {
			return err
		}
	}
	return nil
}
