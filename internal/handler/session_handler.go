package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"notes-sync-client/internal/domain"
	"notes-sync-client/pkg/response"

	"github.com/go-playground/validator/v10"
)

type SessionController interface {
	IsOnline() bool
	SetOnline(online bool) bool
	SetToken(token string)
	AuthError() error
	ExpiresAt() (time.Time, bool)
}

type QueueReplayer interface {
	ProcessOfflineQueue(ctx context.Context) (*domain.SyncResult, error)
}

type SessionHandler struct {
	session  SessionController
	replayer QueueReplayer
	baseCtx  context.Context
	validate *validator.Validate
	logger   *slog.Logger
}

func NewSessionHandler(baseCtx context.Context, session SessionController, replayer QueueReplayer, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		session:  session,
		replayer: replayer,
		baseCtx:  baseCtx,
		validate: validator.New(),
		logger:   logger.With("component", "session_handler"),
	}
}

func (h *SessionHandler) status() domain.SessionStatus {
	status := domain.SessionStatus{Online: h.session.IsOnline()}

	if err := h.session.AuthError(); err != nil {
		status.AuthError = err.Error()
	} else {
		status.Authenticated = true
	}
	if exp, ok := h.session.ExpiresAt(); ok {
		status.ExpiresAt = &exp
	}
	return status
}

func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.status())
}

// SetToken installs the session token issued by the remote login flow.
func (h *SessionHandler) SetToken(w http.ResponseWriter, r *http.Request) {
	var req domain.SessionTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	h.session.SetToken(req.Token)
	h.logger.Info("session token updated")

	response.Success(w, h.status())
}

// SetConnectivity records the platform's reachability signal. Coming back online
// replays the offline queue in the background.
func (h *SessionHandler) SetConnectivity(w http.ResponseWriter, r *http.Request) {
	var req domain.ConnectivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	if h.session.SetOnline(*req.Online) {
		h.logger.Info("connectivity restored, replaying offline queue")
		go func() {
			if _, err := h.replayer.ProcessOfflineQueue(h.baseCtx); err != nil {
				h.logger.Warn("offline replay failed", "error", err)
			}
		}()
	}

	response.Success(w, h.status())
}
