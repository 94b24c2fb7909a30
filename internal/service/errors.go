package service

import (
	"context"
	"errors"
	"fmt"

	"notes-sync-client/internal/remote"
)

var (
	ErrAlreadySyncing   = errors.New("sync already in progress")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrCookieExpired    = errors.New("session cookie expired")
	ErrSyncCancelled    = errors.New("sync cancelled")

	ErrNoteNotFound   = errors.New("note not found")
	ErrFolderNotFound = errors.New("folder not found")
	ErrSystemFolder   = errors.New("system folders cannot be modified")
)

// NetworkError aborts a pass when the remote could not be reached.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Cause)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// InvalidRemoteDataError marks one entity the remote returned in an unusable shape.
// It is recorded and skipped, never returned from a pass.
type InvalidRemoteDataError struct {
	EntityID string
	Cause    error
}

func (e *InvalidRemoteDataError) Error() string {
	return fmt.Sprintf("invalid remote data for %s: %v", e.EntityID, e.Cause)
}

func (e *InvalidRemoteDataError) Unwrap() error {
	return e.Cause
}

// passError converts a remote failure into the error a sync pass returns.
func passError(err error) error {
	if errors.Is(err, context.Canceled) {
		return ErrSyncCancelled
	}
	switch remote.Classify(err) {
	case remote.KindAuthExpired:
		return fmt.Errorf("%w: %v", ErrCookieExpired, err)
	case remote.KindNetwork:
		return &NetworkError{Cause: err}
	default:
		return err
	}
}

// isPassLevel reports whether err must terminate the running pass.
func isPassLevel(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrSyncCancelled) {
		return true
	}
	kind := remote.Classify(err)
	return kind == remote.KindAuthExpired
}

// ErrorCode returns the stable code reported to UI clients for a pass error.
func ErrorCode(err error) string {
	var netErr *NetworkError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAlreadySyncing):
		return "already_syncing"
	case errors.Is(err, ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, ErrCookieExpired):
		return "cookie_expired"
	case errors.Is(err, ErrSyncCancelled):
		return "cancelled"
	case errors.As(err, &netErr):
		return "network"
	default:
		return "internal"
	}
}
