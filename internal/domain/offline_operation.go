package domain

import (
	"encoding/json"
	"time"
)

type OperationType string

const (
	OpCreateNote   OperationType = "create_note"
	OpUpdateNote   OperationType = "update_note"
	OpDeleteNote   OperationType = "delete_note"
	OpUploadImage  OperationType = "upload_image"
	OpCreateFolder OperationType = "create_folder"
	OpRenameFolder OperationType = "rename_folder"
	OpDeleteFolder OperationType = "delete_folder"
)

type OperationStatus string

const (
	StatusPending    OperationStatus = "pending"
	StatusProcessing OperationStatus = "processing"
	StatusCompleted  OperationStatus = "completed"
	StatusFailed     OperationStatus = "failed"
)

const (
	PriorityCreate = 1
	PriorityUpdate = 2
	PriorityDelete = 3
)

type OfflineOperation struct {
	ID         string          `json:"id" validate:"required"`
	Type       OperationType   `json:"type" validate:"required,oneof=create_note update_note delete_note upload_image create_folder rename_folder delete_folder"`
	TargetID   string          `json:"target_id" validate:"required"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Timestamp  time.Time       `json:"timestamp" validate:"required"`
	Priority   int             `json:"priority" validate:"min=1,max=3"`
	RetryCount int             `json:"retry_count" validate:"min=0"`
	LastError  string          `json:"last_error,omitempty"`
	Status     OperationStatus `json:"status" validate:"required,oneof=pending processing completed failed"`
}

// IsLive reports whether the operation still waits to be replayed.
func (o *OfflineOperation) IsLive() bool {
	return o.Status == StatusPending || o.Status == StatusFailed
}

// PriorityFor derives the replay priority from the operation type.
func PriorityFor(t OperationType) int {
	switch t {
	case OpDeleteNote, OpDeleteFolder:
		return PriorityDelete
	case OpUpdateNote, OpRenameFolder:
		return PriorityUpdate
	default:
		return PriorityCreate
	}
}

func (t OperationType) IsCreate() bool {
	return t == OpCreateNote || t == OpCreateFolder
}

func (t OperationType) IsUpdate() bool {
	return t == OpUpdateNote || t == OpRenameFolder
}

func (t OperationType) IsDelete() bool {
	return t == OpDeleteNote || t == OpDeleteFolder
}

func (t OperationType) IsFolder() bool {
	return t == OpCreateFolder || t == OpRenameFolder || t == OpDeleteFolder
}

type NotePayload struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	FolderID  string   `json:"folder_id"`
	IsStarred bool     `json:"is_starred"`
	Tags      []string `json:"tags"`
	Tag       string   `json:"tag,omitempty"`
}

type FolderPayload struct {
	Name string `json:"name"`
	Tag  string `json:"tag,omitempty"`
}

type DeletePayload struct {
	Tag   string `json:"tag"`
	Purge bool   `json:"purge"`
}

type ImagePayload struct {
	NoteID   string `json:"note_id"`
	FileName string `json:"file_name"`
	Data     []byte `json:"data"`
}

func NotePayloadFrom(n *Note) NotePayload {
	return NotePayload{
		Title:     n.Title,
		Content:   n.Content,
		FolderID:  n.FolderID,
		IsStarred: n.IsStarred,
		Tags:      append([]string(nil), n.Tags...),
		Tag:       n.Tag(),
	}
}

// PendingIntents summarizes the live offline operations queued for one target.
type PendingIntents struct {
	Create bool
	Update bool
	Delete bool
}

func (p PendingIntents) Any() bool {
	return p.Create || p.Update || p.Delete
}
