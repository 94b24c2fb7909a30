package websocket

import (
	"encoding/json"
	"time"

	"notes-sync-client/internal/domain"
)

type MessageType string

const (
	TypeSyncRequest  MessageType = "sync_request"
	TypeSyncProgress MessageType = "sync_progress"
	TypeSyncResult   MessageType = "sync_result"
	TypeSyncError    MessageType = "sync_error"
	TypeNoteUpdate   MessageType = "note_update"
	TypeNoteDelete   MessageType = "note_delete"
	TypeAck          MessageType = "ack"
	TypePing         MessageType = "ping"
	TypePong         MessageType = "pong"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// SyncRequestPayload asks for a pass. An empty kind means incremental.
type SyncRequestPayload struct {
	Kind domain.SyncKind `json:"kind,omitempty"`
}

type SyncErrorPayload struct {
	Kind  domain.SyncKind `json:"kind,omitempty"`
	Code  string          `json:"code"`
	Error string          `json:"error"`
}

type NoteUpdatePayload struct {
	NoteID    string    `json:"note_id"`
	Title     string    `json:"title"`
	FolderID  string    `json:"folder_id"`
	Tag       string    `json:"tag,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NoteDeletePayload struct {
	NoteID string `json:"note_id"`
}

type AckPayload struct {
	Type    MessageType `json:"type"`
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
