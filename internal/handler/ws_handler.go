package handler

import (
	"context"
	"log/slog"
	"net/http"

	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/middleware"
	"notes-sync-client/internal/service"
	"notes-sync-client/internal/websocket"
	"notes-sync-client/pkg/jwt"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	manager   *websocket.Manager
	jwtSecret string
	upgrader  ws.Upgrader
	logger    *slog.Logger
}

func NewWebSocketHandler(manager *websocket.Manager, jwtSecret string, readBuffer, writeBuffer int, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager:   manager,
		jwtSecret: jwtSecret,
		upgrader: ws.Upgrader{
			ReadBufferSize:  readBuffer,
			WriteBufferSize: writeBuffer,
			// The API only listens on loopback.
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With("component", "ws_handler"),
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = middleware.BearerToken(r)
	}

	if token == "" {
		http.Error(w, "missing authorization token", http.StatusUnauthorized)
		return
	}

	claims, err := jwt.ValidateToken(token, h.jwtSecret)
	if err != nil {
		h.logger.Warn("token validation failed", "error", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "error", err)
		return
	}

	client := websocket.NewClient(uuid.New().String(), claims.ClientID, conn, h.manager)
	h.manager.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

type SyncRunner interface {
	RunFullSync(ctx context.Context) (*domain.SyncResult, error)
	RunIncrementalSync(ctx context.Context) (*domain.SyncResult, error)
	ProcessOfflineQueue(ctx context.Context) (*domain.SyncResult, error)
}

type WebSocketMessageHandler struct {
	syncer  SyncRunner
	manager *websocket.Manager
	baseCtx context.Context
	logger  *slog.Logger
}

func NewWebSocketMessageHandler(baseCtx context.Context, syncer SyncRunner, manager *websocket.Manager, logger *slog.Logger) *WebSocketMessageHandler {
	return &WebSocketMessageHandler{
		syncer:  syncer,
		manager: manager,
		baseCtx: baseCtx,
		logger:  logger.With("component", "ws_messages"),
	}
}

// HandleWebSocketMessage runs on the manager loop and must not block. Sync passes
// report through the observer broadcasts; the request itself only gets an ack.
func (h *WebSocketMessageHandler) HandleWebSocketMessage(client *websocket.Client, msg *websocket.Message) error {
	switch msg.Type {
	case websocket.TypeSyncRequest:
		return h.handleSyncRequest(client, msg)
	case websocket.TypePing:
		return h.reply(client, websocket.TypePong, nil)
	default:
		h.logger.Debug("ignoring message", "client", client.ID, "type", msg.Type)
		return nil
	}
}

func (h *WebSocketMessageHandler) handleSyncRequest(client *websocket.Client, msg *websocket.Message) error {
	var req websocket.SyncRequestPayload
	if err := msg.UnmarshalPayload(&req); err != nil {
		return h.ack(client, msg.Type, err)
	}

	var run func(ctx context.Context) (*domain.SyncResult, error)
	switch req.Kind {
	case domain.SyncKindFull:
		run = h.syncer.RunFullSync
	case domain.SyncKindIncremental, "":
		run = h.syncer.RunIncrementalSync
	case domain.SyncKindReplay:
		run = h.syncer.ProcessOfflineQueue
	default:
		return h.ack(client, msg.Type, errUnknownSyncKind)
	}

	go func() {
		if _, err := run(h.baseCtx); err != nil && service.ErrorCode(err) != "already_syncing" {
			h.logger.Warn("sync request failed", "client", client.ID, "kind", req.Kind, "error", err)
		}
	}()
	return h.ack(client, msg.Type, nil)
}

func (h *WebSocketMessageHandler) ack(client *websocket.Client, msgType websocket.MessageType, err error) error {
	payload := &websocket.AckPayload{Type: msgType, Success: err == nil}
	if err != nil {
		payload.Error = err.Error()
	}
	return h.reply(client, websocket.TypeAck, payload)
}

func (h *WebSocketMessageHandler) reply(client *websocket.Client, msgType websocket.MessageType, payload interface{}) error {
	msg, err := websocket.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	return h.manager.SendToClient(client.ID, msg)
}
