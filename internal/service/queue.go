package service

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// OperationQueue is the durable buffer of mutating intents that could not reach the
// remote. It is the only writer of operation status and retry counts.
type OperationQueue struct {
	repo     repository.OperationRepository
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time

	// mu serializes read-merge-write cycles so two enqueues for one target cannot interleave.
	mu sync.Mutex
}

func NewOperationQueue(repo repository.OperationRepository, logger *slog.Logger) *OperationQueue {
	return &OperationQueue{
		repo:     repo,
		validate: validator.New(),
		logger:   logger.With("component", "queue"),
		now:      time.Now,
	}
}

// NewOperation builds a pending operation with a JSON payload.
func NewOperation(opType domain.OperationType, targetID string, payload any) (*domain.OfflineOperation, error) {
	op := &domain.OfflineOperation{
		Type:     opType,
		TargetID: targetID,
		Status:   domain.StatusPending,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", opType, err)
		}
		op.Payload = raw
	}
	return op, nil
}

// Enqueue stores op after merging it with the live operations for the same target.
// It returns the operation that survived the merge, or nil when the merge cancelled
// the target out entirely.
func (q *OperationQueue) Enqueue(ctx context.Context, op *domain.OfflineOperation) (*domain.OfflineOperation, error) {
	if op.ID == "" {
		op.ID = uuid.New().String()
	}
	if op.Timestamp.IsZero() {
		op.Timestamp = q.now()
	}
	if op.Status == "" {
		op.Status = domain.StatusPending
	}
	op.Priority = domain.PriorityFor(op.Type)

	if err := q.validate.Struct(op); err != nil {
		return nil, fmt.Errorf("invalid operation: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	existing, err := q.repo.ListByTarget(ctx, op.TargetID)
	if err != nil {
		return nil, err
	}

	plan := planEnqueue(live(existing), op)

	for _, id := range plan.drop {
		if err := q.repo.Delete(ctx, id); err != nil {
			return nil, err
		}
	}
	if err := q.repo.SaveAll(ctx, plan.save); err != nil {
		return nil, err
	}

	q.logger.Debug("operation enqueued",
		"type", op.Type,
		"target", op.TargetID,
		"dropped", len(plan.drop),
		"cancelled", plan.result == nil,
	)
	return plan.result, nil
}

type enqueuePlan struct {
	drop   []string
	save   []*domain.OfflineOperation
	result *domain.OfflineOperation
}

// planEnqueue merges incoming into the live operations of its target. It is pure:
// the caller applies drop and save.
func planEnqueue(existing []*domain.OfflineOperation, incoming *domain.OfflineOperation) enqueuePlan {
	if incoming.Type == domain.OpUploadImage {
		return enqueuePlan{save: []*domain.OfflineOperation{incoming}, result: incoming}
	}

	var create, del *domain.OfflineOperation
	var updates []*domain.OfflineOperation
	for _, op := range existing {
		if op.Type == domain.OpUploadImage || op.Type.IsFolder() != incoming.Type.IsFolder() {
			continue
		}
		switch {
		case op.Type.IsCreate():
			create = op
		case op.Type.IsDelete():
			del = op
		case op.Type.IsUpdate():
			updates = append(updates, op)
		}
	}

	var plan enqueuePlan
	switch {
	case incoming.Type.IsDelete():
		for _, op := range existing {
			if op.Type.IsFolder() == incoming.Type.IsFolder() {
				plan.drop = append(plan.drop, op.ID)
			}
		}
		if create != nil {
			return plan
		}
		plan.save = []*domain.OfflineOperation{incoming}
		plan.result = incoming

	case incoming.Type.IsUpdate():
		if del != nil {
			plan.result = del
			return plan
		}
		if create != nil {
			merged := *create
			merged.Payload = incoming.Payload
			for _, u := range updates {
				plan.drop = append(plan.drop, u.ID)
			}
			plan.save = []*domain.OfflineOperation{&merged}
			plan.result = &merged
			return plan
		}

		latest := incoming
		for _, u := range updates {
			if u.Timestamp.After(latest.Timestamp) {
				latest = u
			}
		}
		for _, u := range updates {
			if u != latest {
				plan.drop = append(plan.drop, u.ID)
			}
		}
		if latest == incoming {
			plan.save = []*domain.OfflineOperation{incoming}
		}
		plan.result = latest

	case incoming.Type.IsCreate():
		for _, u := range updates {
			plan.drop = append(plan.drop, u.ID)
		}
		if create != nil {
			merged := *create
			merged.Payload = incoming.Payload
			plan.save = []*domain.OfflineOperation{&merged}
			plan.result = &merged
			return plan
		}
		plan.save = []*domain.OfflineOperation{incoming}
		plan.result = incoming
	}

	return plan
}

func live(ops []*domain.OfflineOperation) []*domain.OfflineOperation {
	out := make([]*domain.OfflineOperation, 0, len(ops))
	for _, op := range ops {
		if op.IsLive() {
			out = append(out, op)
		}
	}
	return out
}

// DequeuePending returns the live operations in replay order: priority descending,
// then oldest first.
func (q *OperationQueue) DequeuePending(ctx context.Context) ([]*domain.OfflineOperation, error) {
	ops, err := q.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	pending := live(ops)
	sortForReplay(pending)
	return pending, nil
}

func sortForReplay(ops []*domain.OfflineOperation) {
	slices.SortStableFunc(ops, func(a, b *domain.OfflineOperation) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func (q *OperationQueue) MarkCompleted(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.repo.Delete(ctx, id)
}

// MarkFailed records the failure and keeps the operation for the next drain.
func (q *OperationQueue) MarkFailed(ctx context.Context, id string, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	op, err := q.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	op.RetryCount++
	op.Status = domain.StatusFailed
	if cause != nil {
		op.LastError = cause.Error()
	}
	return q.repo.Save(ctx, op)
}

// markProcessing claims the stored copy of an operation. It returns nil when the
// operation is no longer live.
func (q *OperationQueue) markProcessing(ctx context.Context, id string) (*domain.OfflineOperation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	op, err := q.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !op.IsLive() {
		return nil, nil
	}

	op.Status = domain.StatusProcessing
	return op, q.repo.Save(ctx, op)
}

// RequeueInterrupted returns operations left in processing by a crashed replay to pending.
func (q *OperationQueue) RequeueInterrupted(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops, err := q.repo.List(ctx)
	if err != nil {
		return 0, err
	}

	var stuck []*domain.OfflineOperation
	for _, op := range ops {
		if op.Status == domain.StatusProcessing {
			op.Status = domain.StatusPending
			stuck = append(stuck, op)
		}
	}
	return len(stuck), q.repo.SaveAll(ctx, stuck)
}

// IntentSnapshot is the set of queued intents per target, split by entity kind.
type IntentSnapshot struct {
	notes   map[string]domain.PendingIntents
	folders map[string]domain.PendingIntents
}

func (s IntentSnapshot) Note(id string) domain.PendingIntents {
	return s.notes[id]
}

func (s IntentSnapshot) Folder(id string) domain.PendingIntents {
	return s.folders[id]
}

func (s IntentSnapshot) empty() bool {
	return len(s.notes) == 0 && len(s.folders) == 0
}

// Intents snapshots the live operations for the resolver.
func (q *OperationQueue) Intents(ctx context.Context) (IntentSnapshot, error) {
	snap := IntentSnapshot{
		notes:   make(map[string]domain.PendingIntents),
		folders: make(map[string]domain.PendingIntents),
	}

	ops, err := q.repo.List(ctx)
	if err != nil {
		return snap, err
	}

	for _, op := range live(ops) {
		if op.Type == domain.OpUploadImage {
			continue
		}
		m := snap.notes
		if op.Type.IsFolder() {
			m = snap.folders
		}
		in := m[op.TargetID]
		switch {
		case op.Type.IsCreate():
			in.Create = true
		case op.Type.IsUpdate():
			in.Update = true
		case op.Type.IsDelete():
			in.Delete = true
		}
		m[op.TargetID] = in
	}
	return snap, nil
}

// Live returns the live operations of one kind queued for targetID.
func (q *OperationQueue) Live(ctx context.Context, targetID string, folder bool) ([]*domain.OfflineOperation, error) {
	ops, err := q.repo.ListByTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}

	var out []*domain.OfflineOperation
	for _, op := range live(ops) {
		if op.Type.IsFolder() == folder {
			out = append(out, op)
		}
	}
	sortForReplay(out)
	return out, nil
}

// HasLive reports whether any operation is still queued for the note or folder.
func (q *OperationQueue) HasLive(ctx context.Context, targetID string, folder bool) (bool, error) {
	ops, err := q.Live(ctx, targetID, folder)
	return len(ops) > 0, err
}

// RetargetNote rewrites operations queued against a temporary note id after the remote
// assigned a permanent one.
func (q *OperationQueue) RetargetNote(ctx context.Context, oldID, newID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops, err := q.repo.ListByTarget(ctx, oldID)
	if err != nil {
		return err
	}

	var changed []*domain.OfflineOperation
	for _, op := range ops {
		if op.Type.IsFolder() {
			continue
		}
		op.TargetID = newID
		if op.Type == domain.OpUploadImage {
			if err := rewritePayload(op, func(p *domain.ImagePayload) { p.NoteID = newID }); err != nil {
				return err
			}
		}
		changed = append(changed, op)
	}
	return q.repo.SaveAll(ctx, changed)
}

// RetargetFolder rewrites folder operations and note payloads that reference a
// temporary folder id.
func (q *OperationQueue) RetargetFolder(ctx context.Context, oldID, newID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops, err := q.repo.List(ctx)
	if err != nil {
		return err
	}

	var changed []*domain.OfflineOperation
	for _, op := range live(ops) {
		switch {
		case op.Type.IsFolder() && op.TargetID == oldID:
			op.TargetID = newID
			changed = append(changed, op)
		case op.Type == domain.OpCreateNote || op.Type == domain.OpUpdateNote:
			var moved bool
			err := rewritePayload(op, func(p *domain.NotePayload) {
				if p.FolderID == oldID {
					p.FolderID = newID
					moved = true
				}
			})
			if err != nil {
				return err
			}
			if moved {
				changed = append(changed, op)
			}
		}
	}
	return q.repo.SaveAll(ctx, changed)
}

// Clear drops every queued operation.
func (q *OperationQueue) Clear(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.repo.DeleteAll(ctx)
}

// ReplayStats counts the outcome of one drain.
type ReplayStats struct {
	Replayed int
	Failed   int
}

// Replay drains the queue through exec in replay order. A failing operation is marked
// failed and the drain moves on, network failures included. Only an expired session
// stops it early, leaving the remaining operations untouched.
//
// Executing an operation may retarget or drop later ones (a create adopting its server
// id), so each operation is re-read before it runs.
func (q *OperationQueue) Replay(ctx context.Context, exec OperationExecutor) (ReplayStats, error) {
	var stats ReplayStats

	ops, err := q.DequeuePending(ctx)
	if err != nil {
		return stats, err
	}

	for _, queued := range ops {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		op, err := q.markProcessing(ctx, queued.ID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return stats, err
		}
		if op == nil {
			continue
		}

		execErr := exec.Execute(ctx, op)
		if execErr == nil {
			if err := q.MarkCompleted(ctx, op.ID); err != nil {
				return stats, err
			}
			stats.Replayed++
			continue
		}

		stats.Failed++
		q.logger.Warn("operation replay failed",
			"id", op.ID,
			"type", op.Type,
			"target", op.TargetID,
			"retry_count", op.RetryCount+1,
			"error", execErr,
		)
		if err := q.MarkFailed(ctx, op.ID, execErr); err != nil {
			return stats, err
		}

		if isPassLevel(execErr) {
			return stats, passError(execErr)
		}
	}
	return stats, nil
}

func rewritePayload[T any](op *domain.OfflineOperation, fn func(*T)) error {
	var p T
	if len(op.Payload) > 0 {
		if err := json.Unmarshal(op.Payload, &p); err != nil {
			return fmt.Errorf("failed to decode %s payload: %w", op.Type, err)
		}
	}
	fn(&p)
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	op.Payload = raw
	return nil
}
