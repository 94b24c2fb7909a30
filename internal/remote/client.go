package remote

import (
	"context"

	"notes-sync-client/internal/domain"
)

// Page is one page of the full listing. An empty NextCursor means the listing is exhausted.
type Page struct {
	Notes      []*domain.Note
	Folders    []*domain.Folder
	NextCursor string
	SyncTag    string

	// Malformed counts entries that could not be decoded and were dropped.
	Malformed int
}

// ChangePage is one page of the change feed since a sync tag.
type ChangePage struct {
	Notes            []*domain.Note
	Folders          []*domain.Folder
	DeletedNoteIDs   []string
	DeletedFolderIDs []string
	SyncTag          string
	Malformed        int
}

type CreateResult struct {
	ServerID string
	Tag      string
}

// Client is the transport to the remote notes service. Every mutating call that targets
// an existing entity must carry the most recently observed revision tag.
type Client interface {
	ListPage(ctx context.Context, cursor string) (*Page, error)
	ListPrivatePage(ctx context.Context, cursor string) (*Page, error)
	ListChanges(ctx context.Context, syncTag string) (*ChangePage, error)
	FetchDetail(ctx context.Context, id string) (*domain.Note, error)

	CreateNote(ctx context.Context, note *domain.Note) (*CreateResult, error)
	UpdateNote(ctx context.Context, id, tag string, note *domain.Note) (string, error)
	DeleteNote(ctx context.Context, id, tag string, purge bool) error

	CreateFolder(ctx context.Context, folder *domain.Folder) (*CreateResult, error)
	RenameFolder(ctx context.Context, id, tag, name string) (string, error)
	DeleteFolder(ctx context.Context, id, tag string) error

	DownloadAsset(ctx context.Context, id string) ([]byte, error)
	UploadAsset(ctx context.Context, name string, data []byte) (string, error)
}
