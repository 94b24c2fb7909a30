package domain

import "time"

const (
	FolderIDAll     = "0"
	FolderIDStarred = "starred"

	// DefaultPrivateFolderID is the id the remote uses for the private collection.
	// Overridable through SYNC_PRIVATE_FOLDER_ID.
	DefaultPrivateFolderID = "2"
)

type Folder struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Count     int                `json:"count"`
	IsSystem  bool               `json:"is_system"`
	IsPinned  bool               `json:"is_pinned"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Mirror    RemoteEntityMirror `json:"mirror"`
}

func (f *Folder) Tag() string {
	return f.Mirror.RevisionTag
}

func (f *Folder) Clone() *Folder {
	if f == nil {
		return nil
	}
	c := *f
	if f.Mirror.ServerFields != nil {
		c.Mirror.ServerFields = make(map[string]any, len(f.Mirror.ServerFields))
		for k, v := range f.Mirror.ServerFields {
			c.Mirror.ServerFields[k] = v
		}
	}
	return &c
}

// SystemFolders returns the locally synthesized folders. They never take part in
// remote reconciliation.
func SystemFolders(privateFolderID string) []*Folder {
	return []*Folder{
		{ID: FolderIDAll, Name: "All Notes", IsSystem: true},
		{ID: FolderIDStarred, Name: "Starred", IsSystem: true},
		{ID: privateFolderID, Name: "Private", IsSystem: true},
	}
}

func IsSystemFolderID(id, privateFolderID string) bool {
	return id == FolderIDAll || id == FolderIDStarred || id == privateFolderID
}

type CreateFolderRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

type RenameFolderRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}
