package handler

import (
	"errors"
	"net/http"

	"notes-sync-client/internal/service"
	"notes-sync-client/pkg/response"
)

var errUnknownSyncKind = errors.New("unknown sync kind")

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var netErr *service.NetworkError
	status, code := http.StatusInternalServerError, service.ErrorCode(err)

	switch {
	case errors.Is(err, service.ErrAlreadySyncing), errors.Is(err, service.ErrSyncCancelled):
		status = http.StatusConflict
	case errors.Is(err, service.ErrNotAuthenticated), errors.Is(err, service.ErrCookieExpired):
		status = http.StatusUnauthorized
	case errors.As(err, &netErr):
		status = http.StatusServiceUnavailable
	case errors.Is(err, service.ErrNoteNotFound), errors.Is(err, service.ErrFolderNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrSystemFolder):
		status, code = http.StatusForbidden, "system_folder"
	}

	response.ErrorWithCode(w, status, code, err.Error())
}
