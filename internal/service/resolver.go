package service

import (
	"time"

	"notes-sync-client/internal/domain"
	"notes-sync-client/pkg/hash"
)

// DefaultTimestampTolerance is the window inside which local and remote timestamps
// are treated as equal.
const DefaultTimestampTolerance = 2 * time.Second

// Resolver decides what to do with one entity given its local and remote versions.
// It performs no I/O.
type Resolver struct {
	tolerance time.Duration
}

func NewResolver(tolerance time.Duration) *Resolver {
	if tolerance <= 0 {
		tolerance = DefaultTimestampTolerance
	}
	return &Resolver{tolerance: tolerance}
}

func (r *Resolver) Tolerance() time.Duration {
	return r.tolerance
}

// Reconcile returns the action for a note. A nil local or remote means the entity is
// absent on that side.
func (r *Resolver) Reconcile(local, remote *domain.Note, intents domain.PendingIntents) domain.Action {
	switch {
	case local == nil && remote == nil:
		return domain.ActionNoOp
	case local == nil:
		if intents.Delete {
			return domain.ActionDeleteRemote
		}
		return domain.ActionAdoptRemoteIntoLocal
	case remote == nil:
		return r.localOnly(local.IsTemporary(), intents)
	}

	switch r.compare(local.UpdatedAt, remote.UpdatedAt) {
	case remoteNewer:
		return domain.ActionTakeRemote
	case localNewer:
		if intents.Update {
			return domain.ActionNoOp
		}
		return domain.ActionKeepLocalAndEnqueueUpload
	}

	if hash.Equal(local.Content, remote.Content) && hash.Equal(local.Title, remote.Title) {
		return domain.ActionNoOp
	}
	// Remote wins ties so both sides converge.
	return domain.ActionTakeRemote
}

// ReconcileFolder applies the note rules to folders, comparing names instead of content.
func (r *Resolver) ReconcileFolder(local, remote *domain.Folder, intents domain.PendingIntents) domain.Action {
	switch {
	case local == nil && remote == nil:
		return domain.ActionNoOp
	case local == nil:
		if intents.Delete {
			return domain.ActionDeleteRemote
		}
		return domain.ActionAdoptRemoteIntoLocal
	case remote == nil:
		return r.localOnly(domain.IsTemporaryID(local.ID), intents)
	}

	switch r.compare(local.UpdatedAt, remote.UpdatedAt) {
	case remoteNewer:
		return domain.ActionTakeRemote
	case localNewer:
		if intents.Update {
			return domain.ActionNoOp
		}
		return domain.ActionKeepLocalAndEnqueueUpload
	}

	if hash.Equal(local.Name, remote.Name) {
		return domain.ActionNoOp
	}
	return domain.ActionTakeRemote
}

func (r *Resolver) localOnly(temporary bool, intents domain.PendingIntents) domain.Action {
	switch {
	case intents.Create:
		return domain.ActionCreateRemote
	case intents.Update, intents.Delete:
		return domain.ActionNoOp
	case temporary:
		// Never uploaded and nothing queued: the only copy is local.
		return domain.ActionKeepLocalAndEnqueueUpload
	default:
		return domain.ActionDeleteLocal
	}
}

type ordering int

const (
	tie ordering = iota
	localNewer
	remoteNewer
)

func (r *Resolver) compare(local, remote time.Time) ordering {
	delta := remote.Sub(local)
	switch {
	case delta > r.tolerance:
		return remoteNewer
	case delta < -r.tolerance:
		return localNewer
	default:
		return tie
	}
}
