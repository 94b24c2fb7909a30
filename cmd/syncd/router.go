package main

import (
	"context"
	"log/slog"
	"net/http"

	"notes-sync-client/internal/config"
	"notes-sync-client/internal/handler"
	"notes-sync-client/internal/middleware"
	"notes-sync-client/internal/websocket"
	"notes-sync-client/pkg/response"

	"github.com/gorilla/mux"
)

func newRouter(ctx context.Context, cfg *config.Config, a *app, wsManager *websocket.Manager, logger *slog.Logger) *mux.Router {
	noteHandler := handler.NewNoteHandler(a.notes)
	folderHandler := handler.NewFolderHandler(a.notes)
	syncHandler := handler.NewSyncHandler(ctx, a.sync, a.queue, a.repos.SyncStatus, a.repos.PendingDeletions, logger)
	sessionHandler := handler.NewSessionHandler(ctx, a.session, a.sync, logger)
	wsHandler := handler.NewWebSocketHandler(wsManager, cfg.JWT.Secret, cfg.WebSocket.ReadBufferSize, cfg.WebSocket.WriteBufferSize, logger)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.AuthMiddleware(cfg.JWT.Secret))

	api.HandleFunc("/notes", noteHandler.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/notes", noteHandler.Create).Methods("POST", "OPTIONS")
	api.HandleFunc("/notes/{id}", noteHandler.Get).Methods("GET", "OPTIONS")
	api.HandleFunc("/notes/{id}", noteHandler.Update).Methods("PUT", "OPTIONS")
	api.HandleFunc("/notes/{id}", noteHandler.Delete).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/notes/{id}/images", noteHandler.UploadImage).Methods("POST", "OPTIONS")

	api.HandleFunc("/folders", folderHandler.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/folders", folderHandler.Create).Methods("POST", "OPTIONS")
	api.HandleFunc("/folders/{id}", folderHandler.Rename).Methods("PUT", "OPTIONS")
	api.HandleFunc("/folders/{id}", folderHandler.Delete).Methods("DELETE", "OPTIONS")

	api.HandleFunc("/sync/full", syncHandler.FullSync).Methods("POST", "OPTIONS")
	api.HandleFunc("/sync/incremental", syncHandler.IncrementalSync).Methods("POST", "OPTIONS")
	api.HandleFunc("/sync/replay", syncHandler.Replay).Methods("POST", "OPTIONS")
	api.HandleFunc("/sync/cancel", syncHandler.Cancel).Methods("POST", "OPTIONS")
	api.HandleFunc("/sync/reset", syncHandler.Reset).Methods("POST", "OPTIONS")
	api.HandleFunc("/sync/status", syncHandler.Status).Methods("GET", "OPTIONS")
	api.HandleFunc("/sync/operations", syncHandler.Operations).Methods("GET", "OPTIONS")

	api.HandleFunc("/session", sessionHandler.Status).Methods("GET", "OPTIONS")
	api.HandleFunc("/session/token", sessionHandler.SetToken).Methods("POST", "OPTIONS")
	api.HandleFunc("/session/connectivity", sessionHandler.SetConnectivity).Methods("POST", "OPTIONS")

	r.HandleFunc("/ws", wsHandler.HandleConnection)
	r.HandleFunc("/health", healthHandler(wsManager)).Methods("GET")

	return r
}

func healthHandler(wsManager *websocket.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, map[string]interface{}{
			"status":  "healthy",
			"service": "notes-sync-client",
			"clients": wsManager.ClientCount(),
		})
	}
}
