package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/repository"
	"notes-sync-client/internal/service"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func newRequest(t *testing.T, method, target string, body interface{}, vars map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, target, &buf)
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

type fakeNotes struct {
	mu        sync.Mutex
	notes     map[string]*domain.Note
	folders   []*domain.Folder
	err       error
	lastPurge bool
	lastImage *domain.UploadImageRequest
}

func newFakeNotes() *fakeNotes {
	return &fakeNotes{notes: make(map[string]*domain.Note)}
}

func (f *fakeNotes) List(ctx context.Context, folderID string) ([]*domain.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Note
	for _, n := range f.notes {
		if folderID == "" || n.FolderID == folderID {
			out = append(out, n)
		}
	}
	return out, f.err
}

func (f *fakeNotes) Get(ctx context.Context, id string) (*domain.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[id]
	if !ok {
		return nil, service.ErrNoteNotFound
	}
	return n, nil
}

func (f *fakeNotes) CreateNote(ctx context.Context, req *domain.CreateNoteRequest) (*domain.Note, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := &domain.Note{ID: "srv-1", Title: req.Title, Content: req.Content, FolderID: req.FolderID}
	f.notes[n.ID] = n
	return n, nil
}

func (f *fakeNotes) UpdateNote(ctx context.Context, id string, req *domain.UpdateNoteRequest) (*domain.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[id]
	if !ok {
		return nil, service.ErrNoteNotFound
	}
	if req.Title != nil {
		n.Title = *req.Title
	}
	return n, nil
}

func (f *fakeNotes) DeleteNote(ctx context.Context, id string, purge bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.notes[id]; !ok {
		return service.ErrNoteNotFound
	}
	delete(f.notes, id)
	f.lastPurge = purge
	return nil
}

func (f *fakeNotes) UploadImage(ctx context.Context, noteID string, req *domain.UploadImageRequest) (*domain.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastImage = req
	n, ok := f.notes[noteID]
	if !ok {
		return nil, service.ErrNoteNotFound
	}
	return n, nil
}

func (f *fakeNotes) ListFolders(ctx context.Context) ([]*domain.Folder, error) {
	return f.folders, f.err
}

func (f *fakeNotes) CreateFolder(ctx context.Context, req *domain.CreateFolderRequest) (*domain.Folder, error) {
	return &domain.Folder{ID: "srvf-1", Name: req.Name}, f.err
}

func (f *fakeNotes) RenameFolder(ctx context.Context, id string, req *domain.RenameFolderRequest) (*domain.Folder, error) {
	if domain.IsSystemFolderID(id, "2") {
		return nil, service.ErrSystemFolder
	}
	return &domain.Folder{ID: id, Name: req.Name}, nil
}

func (f *fakeNotes) DeleteFolder(ctx context.Context, id string) error {
	if domain.IsSystemFolderID(id, "2") {
		return service.ErrSystemFolder
	}
	return f.err
}

type fakeSyncer struct {
	mu        sync.Mutex
	calls     []domain.SyncKind
	err       error
	block     chan struct{}
	cancelled bool
	resets    int
	progress  domain.SyncProgress
}

func (f *fakeSyncer) run(kind domain.SyncKind) (*domain.SyncResult, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, kind)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.SyncResult{Kind: kind, SyncedNotes: 3}, nil
}

func (f *fakeSyncer) RunFullSync(ctx context.Context) (*domain.SyncResult, error) {
	return f.run(domain.SyncKindFull)
}

func (f *fakeSyncer) RunIncrementalSync(ctx context.Context) (*domain.SyncResult, error) {
	return f.run(domain.SyncKindIncremental)
}

func (f *fakeSyncer) ProcessOfflineQueue(ctx context.Context) (*domain.SyncResult, error) {
	return f.run(domain.SyncKindReplay)
}

func (f *fakeSyncer) CancelSync() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

func (f *fakeSyncer) ResetSyncCursor(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return nil
}

func (f *fakeSyncer) Progress() domain.SyncProgress {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.progress
}

func (f *fakeSyncer) kinds() []domain.SyncKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SyncKind(nil), f.calls...)
}

type fakeOps struct {
	ops []*domain.OfflineOperation
}

func (f *fakeOps) DequeuePending(ctx context.Context) ([]*domain.OfflineOperation, error) {
	return f.ops, nil
}

type fakeStatusRepo struct {
	status *domain.SyncStatus
}

func (f *fakeStatusRepo) Get(ctx context.Context) (*domain.SyncStatus, error) {
	if f.status == nil {
		return nil, repository.ErrNotFound
	}
	return f.status, nil
}

func (f *fakeStatusRepo) Save(ctx context.Context, status *domain.SyncStatus) error {
	f.status = status
	return nil
}

func (f *fakeStatusRepo) Clear(ctx context.Context) error {
	f.status = nil
	return nil
}

type fakePendingRepo struct {
	items []*domain.PendingDeletion
}

func (f *fakePendingRepo) List(ctx context.Context) ([]*domain.PendingDeletion, error) {
	return f.items, nil
}

func (f *fakePendingRepo) Save(ctx context.Context, pd *domain.PendingDeletion) error {
	f.items = append(f.items, pd)
	return nil
}

func (f *fakePendingRepo) Delete(ctx context.Context, noteID string) error {
	return nil
}

type fakeSession struct {
	mu      sync.Mutex
	online  bool
	token   string
	authErr error
	expires time.Time
}

func (f *fakeSession) IsOnline() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeSession) SetOnline(online bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	restored := online && !f.online
	f.online = online
	return restored
}

func (f *fakeSession) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
	f.authErr = nil
}

func (f *fakeSession) AuthError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authErr
}

func (f *fakeSession) ExpiresAt() (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expires, !f.expires.IsZero()
}
