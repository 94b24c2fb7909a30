package domain

import (
	"strings"
	"time"
)

// TemporaryIDPrefix marks ids minted locally for entities the remote has not seen yet.
const TemporaryIDPrefix = "local-"

// RemoteEntityMirror keeps the remote representation of an entity. RevisionTag is the
// optimistic-concurrency token; ServerFields holds every field this client does not model
// so it can be written back untouched.
type RemoteEntityMirror struct {
	RevisionTag     string         `json:"revision_tag"`
	CreatedAtRemote time.Time      `json:"created_at_remote"`
	ServerFields    map[string]any `json:"server_fields,omitempty"`
}

type Note struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	Content   string             `json:"content"`
	FolderID  string             `json:"folder_id"`
	IsStarred bool               `json:"is_starred"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Tags      []string           `json:"tags"`
	AssetIDs  []string           `json:"asset_ids,omitempty"`
	Mirror    RemoteEntityMirror `json:"mirror"`
}

// Tag returns the most recently observed revision tag.
func (n *Note) Tag() string {
	return n.Mirror.RevisionTag
}

func (n *Note) IsTemporary() bool {
	return IsTemporaryID(n.ID)
}

func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	c := *n
	c.Tags = append([]string(nil), n.Tags...)
	c.AssetIDs = append([]string(nil), n.AssetIDs...)
	if n.Mirror.ServerFields != nil {
		c.Mirror.ServerFields = make(map[string]any, len(n.Mirror.ServerFields))
		for k, v := range n.Mirror.ServerFields {
			c.Mirror.ServerFields[k] = v
		}
	}
	return &c
}

func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TemporaryIDPrefix)
}

type CreateNoteRequest struct {
	Title     string   `json:"title" validate:"max=500"`
	Content   string   `json:"content"`
	FolderID  string   `json:"folder_id"`
	IsStarred bool     `json:"is_starred"`
	Tags      []string `json:"tags" validate:"dive,required"`
}

type UpdateNoteRequest struct {
	Title     *string  `json:"title" validate:"omitempty,max=500"`
	Content   *string  `json:"content"`
	FolderID  *string  `json:"folder_id"`
	IsStarred *bool    `json:"is_starred"`
	Tags      []string `json:"tags" validate:"omitempty,dive,required"`
}

type UploadImageRequest struct {
	FileName string `json:"file_name" validate:"required"`
	Data     []byte `json:"data" validate:"required"`
}
