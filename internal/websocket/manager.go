package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/service"
)

type ClientMessage struct {
	Client  *Client
	Message []byte
}

// Manager fans sync progress and note changes out to the connected UI clients. It
// satisfies service.SyncObserver and service.ChangeObserver.
type Manager struct {
	clients        map[string]*Client
	clientsMutex   sync.RWMutex
	Register       chan *Client
	Unregister     chan *Client
	HandleMessage  chan *ClientMessage
	maxClients     int
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	maxMessageSize int64
	messageHandler MessageHandler
	logger         *slog.Logger
}

type MessageHandler interface {
	HandleWebSocketMessage(client *Client, msg *Message) error
}

type Options struct {
	MaxClients     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

func NewManager(opts Options, logger *slog.Logger) *Manager {
	return &Manager{
		clients:        make(map[string]*Client),
		Register:       make(chan *Client),
		Unregister:     make(chan *Client),
		HandleMessage:  make(chan *ClientMessage),
		maxClients:     opts.MaxClients,
		writeWait:      opts.WriteWait,
		pongWait:       opts.PongWait,
		pingPeriod:     opts.PingPeriod,
		maxMessageSize: opts.MaxMessageSize,
		logger:         logger.With("component", "websocket"),
	}
}

func (m *Manager) SetMessageHandler(handler MessageHandler) {
	m.messageHandler = handler
}

// Run serves registrations and inbound messages until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return

		case client := <-m.Register:
			m.registerClient(client)

		case client := <-m.Unregister:
			m.unregisterClient(client)

		case clientMsg := <-m.HandleMessage:
			m.processMessage(clientMsg)
		}
	}
}

func (m *Manager) registerClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if m.maxClients > 0 && len(m.clients) >= m.maxClients {
		m.logger.Warn("max clients reached", "client", client.ID, "name", client.Name)
		close(client.Send)
		return
	}

	m.clients[client.ID] = client
	m.logger.Info("client registered", "client", client.ID, "name", client.Name)
}

func (m *Manager) unregisterClient(client *Client) {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	if _, ok := m.clients[client.ID]; ok {
		delete(m.clients, client.ID)
		close(client.Send)
		m.logger.Info("client unregistered", "client", client.ID)
	}
}

func (m *Manager) closeAll() {
	m.clientsMutex.Lock()
	defer m.clientsMutex.Unlock()

	for id, client := range m.clients {
		close(client.Send)
		delete(m.clients, id)
	}
}

func (m *Manager) processMessage(clientMsg *ClientMessage) {
	var msg Message
	if err := json.Unmarshal(clientMsg.Message, &msg); err != nil {
		m.logger.Warn("invalid message", "client", clientMsg.Client.ID, "error", err)
		return
	}

	if m.messageHandler != nil {
		if err := m.messageHandler.HandleWebSocketMessage(clientMsg.Client, &msg); err != nil {
			m.logger.Warn("message handling failed", "client", clientMsg.Client.ID, "type", msg.Type, "error", err)
		}
	}
}

// Broadcast queues message for every connected client. Clients whose buffer is full
// miss the message.
func (m *Manager) Broadcast(message *Message) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	for id, client := range m.clients {
		select {
		case client.Send <- messageBytes:
		default:
			m.logger.Warn("client send buffer full", "client", id, "type", message.Type)
		}
	}
	return nil
}

func (m *Manager) SendToClient(clientID string, message *Message) error {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()

	client, exists := m.clients[clientID]
	if !exists {
		return nil
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case client.Send <- messageBytes:
	default:
		m.logger.Warn("client send buffer full", "client", clientID, "type", message.Type)
	}
	return nil
}

func (m *Manager) ClientCount() int {
	m.clientsMutex.RLock()
	defer m.clientsMutex.RUnlock()
	return len(m.clients)
}

func (m *Manager) broadcast(msgType MessageType, payload interface{}) {
	msg, err := NewMessage(msgType, payload)
	if err == nil {
		err = m.Broadcast(msg)
	}
	if err != nil {
		m.logger.Warn("broadcast failed", "type", msgType, "error", err)
	}
}

func (m *Manager) OnSyncProgress(progress domain.SyncProgress) {
	m.broadcast(TypeSyncProgress, progress)
}

func (m *Manager) OnSyncFinished(result *domain.SyncResult, err error) {
	if err != nil {
		m.broadcast(TypeSyncError, &SyncErrorPayload{
			Kind:  result.Kind,
			Code:  service.ErrorCode(err),
			Error: err.Error(),
		})
		return
	}
	m.broadcast(TypeSyncResult, result)
}

func (m *Manager) OnNoteChanged(note *domain.Note) {
	m.broadcast(TypeNoteUpdate, &NoteUpdatePayload{
		NoteID:    note.ID,
		Title:     note.Title,
		FolderID:  note.FolderID,
		Tag:       note.Tag(),
		UpdatedAt: note.UpdatedAt,
	})
}

func (m *Manager) OnNoteDeleted(noteID string) {
	m.broadcast(TypeNoteDelete, &NoteDeletePayload{NoteID: noteID})
}
