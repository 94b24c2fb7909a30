package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/repository"
	"notes-sync-client/pkg/response"
)

// Syncer is the sync coordinator as seen by the control API.
type Syncer interface {
	RunFullSync(ctx context.Context) (*domain.SyncResult, error)
	RunIncrementalSync(ctx context.Context) (*domain.SyncResult, error)
	ProcessOfflineQueue(ctx context.Context) (*domain.SyncResult, error)
	CancelSync() bool
	ResetSyncCursor(ctx context.Context) error
	Progress() domain.SyncProgress
}

type OperationLister interface {
	DequeuePending(ctx context.Context) ([]*domain.OfflineOperation, error)
}

type SyncHandler struct {
	syncer  Syncer
	queue   OperationLister
	status  repository.SyncStatusRepository
	pending repository.PendingDeletionRepository
	baseCtx context.Context
	logger  *slog.Logger
}

// NewSyncHandler builds the sync endpoints. Passes started with ?async=true run on
// baseCtx so they outlive the request.
func NewSyncHandler(
	baseCtx context.Context,
	syncer Syncer,
	queue OperationLister,
	status repository.SyncStatusRepository,
	pending repository.PendingDeletionRepository,
	logger *slog.Logger,
) *SyncHandler {
	return &SyncHandler{
		syncer:  syncer,
		queue:   queue,
		status:  status,
		pending: pending,
		baseCtx: baseCtx,
		logger:  logger.With("component", "sync_handler"),
	}
}

type syncRun func(ctx context.Context) (*domain.SyncResult, error)

func (h *SyncHandler) run(w http.ResponseWriter, r *http.Request, kind domain.SyncKind, fn syncRun) {
	if r.URL.Query().Get("async") == "true" {
		go func() {
			if _, err := fn(h.baseCtx); err != nil {
				h.logger.Warn("background sync failed", "kind", kind, "error", err)
			}
		}()
		response.Accepted(w, string(kind)+" sync started")
		return
	}

	// A disconnecting caller does not cancel the pass; /sync/cancel does.
	result, err := fn(context.WithoutCancel(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *SyncHandler) FullSync(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, domain.SyncKindFull, h.syncer.RunFullSync)
}

func (h *SyncHandler) IncrementalSync(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, domain.SyncKindIncremental, h.syncer.RunIncrementalSync)
}

func (h *SyncHandler) Replay(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, domain.SyncKindReplay, h.syncer.ProcessOfflineQueue)
}

func (h *SyncHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]bool{"cancelled": h.syncer.CancelSync()})
}

func (h *SyncHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.syncer.ResetSyncCursor(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	response.Success(w, map[string]string{"message": "sync cursor cleared"})
}

type syncStatusResponse struct {
	domain.SyncProgress
	HasCursor         bool   `json:"has_cursor"`
	LastSyncTime      string `json:"last_sync_time,omitempty"`
	PendingOperations int    `json:"pending_operations"`
	PendingDeletions  int    `json:"pending_deletions"`
}

func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	res := syncStatusResponse{SyncProgress: h.syncer.Progress()}

	status, err := h.status.Get(r.Context())
	switch {
	case err == nil:
		res.HasCursor = status.SyncTag != ""
		if !status.LastSyncTime.IsZero() {
			res.LastSyncTime = status.LastSyncTime.Format(time.RFC3339)
		}
	case !errors.Is(err, repository.ErrNotFound):
		response.InternalError(w, "Failed to read sync status")
		return
	}

	ops, err := h.queue.DequeuePending(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to read offline queue")
		return
	}
	res.PendingOperations = len(ops)

	pending, err := h.pending.List(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to read pending deletions")
		return
	}
	res.PendingDeletions = len(pending)

	response.Success(w, res)
}

type operationView struct {
	ID         string                 `json:"id"`
	Type       domain.OperationType   `json:"type"`
	TargetID   string                 `json:"target_id"`
	Priority   int                    `json:"priority"`
	RetryCount int                    `json:"retry_count"`
	LastError  string                 `json:"last_error,omitempty"`
	Status     domain.OperationStatus `json:"status"`
	Timestamp  string                 `json:"timestamp"`
}

// Operations lists the offline queue in replay order. Payloads are left out; image
// payloads carry raw bytes.
func (h *SyncHandler) Operations(w http.ResponseWriter, r *http.Request) {
	ops, err := h.queue.DequeuePending(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to read offline queue")
		return
	}

	views := make([]operationView, 0, len(ops))
	for _, op := range ops {
		views = append(views, operationView{
			ID:         op.ID,
			Type:       op.Type,
			TargetID:   op.TargetID,
			Priority:   op.Priority,
			RetryCount: op.RetryCount,
			LastError:  op.LastError,
			Status:     op.Status,
			Timestamp:  op.Timestamp.Format(time.RFC3339),
		})
	}
	response.Success(w, views)
}
