package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"notes-sync-client/internal/domain"
	"notes-sync-client/internal/logging"
	"notes-sync-client/internal/remote"
	"notes-sync-client/internal/repository"
)

type mockNoteRepo struct {
	mu    sync.Mutex
	notes map[string]*domain.Note
}

func newMockNoteRepo() *mockNoteRepo {
	return &mockNoteRepo{notes: make(map[string]*domain.Note)}
}

func (m *mockNoteRepo) Get(ctx context.Context, id string) (*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notes[id]; ok {
		return n.Clone(), nil
	}
	return nil, fmt.Errorf("note %s: %w", id, repository.ErrNotFound)
}

func (m *mockNoteRepo) List(ctx context.Context) ([]*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Note
	for _, n := range m.notes {
		out = append(out, n.Clone())
	}
	return out, nil
}

func (m *mockNoteRepo) ListByFolder(ctx context.Context, folderID string) ([]*domain.Note, error) {
	all, _ := m.List(ctx)
	var out []*domain.Note
	for _, n := range all {
		if n.FolderID == folderID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNoteRepo) Save(ctx context.Context, note *domain.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[note.ID] = note.Clone()
	return nil
}

func (m *mockNoteRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.notes, id)
	return nil
}

func (m *mockNoteRepo) DeleteAll(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.notes)
	m.notes = make(map[string]*domain.Note)
	return n, nil
}

func (m *mockNoteRepo) ReplaceID(ctx context.Context, oldID string, note *domain.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.notes, oldID)
	m.notes[note.ID] = note.Clone()
	return nil
}

func (m *mockNoteRepo) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id := range m.notes {
		out = append(out, id)
	}
	return out
}

type mockFolderRepo struct {
	mu      sync.Mutex
	folders map[string]*domain.Folder
	notes   *mockNoteRepo
}

func newMockFolderRepo(notes *mockNoteRepo) *mockFolderRepo {
	return &mockFolderRepo{folders: make(map[string]*domain.Folder), notes: notes}
}

func (m *mockFolderRepo) Get(ctx context.Context, id string) (*domain.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.folders[id]; ok {
		return f.Clone(), nil
	}
	return nil, fmt.Errorf("folder %s: %w", id, repository.ErrNotFound)
}

func (m *mockFolderRepo) List(ctx context.Context) ([]*domain.Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Folder
	for _, f := range m.folders {
		out = append(out, f.Clone())
	}
	return out, nil
}

func (m *mockFolderRepo) Save(ctx context.Context, folder *domain.Folder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.folders[folder.ID] = folder.Clone()
	return nil
}

func (m *mockFolderRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.folders, id)
	return nil
}

func (m *mockFolderRepo) DeleteNonSystem(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, f := range m.folders {
		if !f.IsSystem {
			delete(m.folders, id)
			n++
		}
	}
	return n, nil
}

func (m *mockFolderRepo) ReplaceID(ctx context.Context, oldID string, folder *domain.Folder) error {
	m.mu.Lock()
	delete(m.folders, oldID)
	m.folders[folder.ID] = folder.Clone()
	m.mu.Unlock()

	notes, _ := m.notes.ListByFolder(ctx, oldID)
	for _, n := range notes {
		n.FolderID = folder.ID
		m.notes.Save(ctx, n)
	}
	return nil
}

type mockOperationRepo struct {
	mu  sync.Mutex
	ops map[string]*domain.OfflineOperation
}

func newMockOperationRepo() *mockOperationRepo {
	return &mockOperationRepo{ops: make(map[string]*domain.OfflineOperation)}
}

func cloneOp(op *domain.OfflineOperation) *domain.OfflineOperation {
	c := *op
	c.Payload = append([]byte(nil), op.Payload...)
	return &c
}

func (m *mockOperationRepo) Get(ctx context.Context, id string) (*domain.OfflineOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if op, ok := m.ops[id]; ok {
		return cloneOp(op), nil
	}
	return nil, fmt.Errorf("operation %s: %w", id, repository.ErrNotFound)
}

func (m *mockOperationRepo) List(ctx context.Context) ([]*domain.OfflineOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.OfflineOperation
	for _, op := range m.ops {
		out = append(out, cloneOp(op))
	}
	return out, nil
}

func (m *mockOperationRepo) ListByTarget(ctx context.Context, targetID string) ([]*domain.OfflineOperation, error) {
	all, _ := m.List(ctx)
	var out []*domain.OfflineOperation
	for _, op := range all {
		if op.TargetID == targetID {
			out = append(out, op)
		}
	}
	return out, nil
}

func (m *mockOperationRepo) Save(ctx context.Context, op *domain.OfflineOperation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[op.ID] = cloneOp(op)
	return nil
}

func (m *mockOperationRepo) SaveAll(ctx context.Context, ops []*domain.OfflineOperation) error {
	for _, op := range ops {
		m.Save(ctx, op)
	}
	return nil
}

func (m *mockOperationRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ops, id)
	return nil
}

func (m *mockOperationRepo) DeleteAll(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.ops)
	m.ops = make(map[string]*domain.OfflineOperation)
	return n, nil
}

type mockPendingDeletionRepo struct {
	mu      sync.Mutex
	pending map[string]*domain.PendingDeletion
}

func newMockPendingDeletionRepo() *mockPendingDeletionRepo {
	return &mockPendingDeletionRepo{pending: make(map[string]*domain.PendingDeletion)}
}

func (m *mockPendingDeletionRepo) List(ctx context.Context) ([]*domain.PendingDeletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.PendingDeletion
	for _, pd := range m.pending {
		c := *pd
		out = append(out, &c)
	}
	return out, nil
}

func (m *mockPendingDeletionRepo) Save(ctx context.Context, pd *domain.PendingDeletion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *pd
	m.pending[pd.NoteID] = &c
	return nil
}

func (m *mockPendingDeletionRepo) Delete(ctx context.Context, noteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, noteID)
	return nil
}

type mockSyncStatusRepo struct {
	mu     sync.Mutex
	status *domain.SyncStatus
	saves  int
}

func (m *mockSyncStatusRepo) Get(ctx context.Context) (*domain.SyncStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == nil {
		return nil, repository.ErrNotFound
	}
	return m.status.Clone(), nil
}

func (m *mockSyncStatusRepo) Save(ctx context.Context, status *domain.SyncStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status.Clone()
	m.saves++
	return nil
}

func (m *mockSyncStatusRepo) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = nil
	return nil
}

type mockAssetStore struct {
	mu     sync.Mutex
	assets map[string][]byte
}

func newMockAssetStore() *mockAssetStore {
	return &mockAssetStore{assets: make(map[string][]byte)}
}

func (m *mockAssetStore) Put(id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[id] = data
	return nil
}

func (m *mockAssetStore) Get(id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.assets[id]; ok {
		return d, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockAssetStore) Exists(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.assets[id]
	return ok, nil
}

func (m *mockAssetStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assets, id)
	return nil
}

type updateCall struct {
	ID  string
	Tag string
}

type deleteCall struct {
	ID    string
	Tag   string
	Purge bool
}

// fakeRemote is an in-memory remote service. Hooks override the default behavior of
// individual calls.
type fakeRemote struct {
	mu sync.Mutex

	pages        map[string]*remote.Page
	privatePages map[string]*remote.Page
	changes      map[string]*remote.ChangePage
	details      map[string]*domain.Note
	detailErrs   map[string]error
	assets       map[string][]byte
	listErr      error

	listHook   func(cursor string)
	updateHook func(id, tag string, note *domain.Note) (string, error)
	deleteHook func(id, tag string, purge bool) error
	createHook func(note *domain.Note) (*remote.CreateResult, error)

	listCalls    []string
	changeCalls  []string
	detailCalls  []string
	updateCalls  []updateCall
	deleteCalls  []deleteCall
	createCalls  []string
	downloads    []string
	uploadCalls  []string
	folderCreate []string
	seq          int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		pages:        make(map[string]*remote.Page),
		privatePages: make(map[string]*remote.Page),
		changes:      make(map[string]*remote.ChangePage),
		details:      make(map[string]*domain.Note),
		detailErrs:   make(map[string]error),
		assets:       make(map[string][]byte),
	}
}

// addNote registers a note the remote knows about and returns its listing entry.
func (f *fakeRemote) addNote(id, title, content string, updated time.Time) *domain.Note {
	n := &domain.Note{
		ID:        id,
		Title:     title,
		Content:   content,
		FolderID:  domain.FolderIDAll,
		CreatedAt: updated,
		UpdatedAt: updated,
		Mirror:    domain.RemoteEntityMirror{RevisionTag: "tag-" + id},
	}
	f.mu.Lock()
	f.details[id] = n
	f.mu.Unlock()
	return n.Clone()
}

func (f *fakeRemote) ListPage(ctx context.Context, cursor string) (*remote.Page, error) {
	if f.listHook != nil {
		f.listHook(cursor)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, cursor)
	if f.listErr != nil {
		return nil, f.listErr
	}
	if p, ok := f.pages[cursor]; ok {
		return p, nil
	}
	return &remote.Page{}, nil
}

func (f *fakeRemote) ListPrivatePage(ctx context.Context, cursor string) (*remote.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.privatePages[cursor]; ok {
		return p, nil
	}
	return &remote.Page{}, nil
}

func (f *fakeRemote) ListChanges(ctx context.Context, syncTag string) (*remote.ChangePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changeCalls = append(f.changeCalls, syncTag)
	if c, ok := f.changes[syncTag]; ok {
		return c, nil
	}
	return &remote.ChangePage{SyncTag: syncTag}, nil
}

func (f *fakeRemote) FetchDetail(ctx context.Context, id string) (*domain.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls = append(f.detailCalls, id)
	if err := f.detailErrs[id]; err != nil {
		return nil, err
	}
	if n, ok := f.details[id]; ok {
		return n.Clone(), nil
	}
	return nil, remote.ErrNotFound
}

func (f *fakeRemote) CreateNote(ctx context.Context, note *domain.Note) (*remote.CreateResult, error) {
	f.mu.Lock()
	f.createCalls = append(f.createCalls, note.ID)
	hook := f.createHook
	f.mu.Unlock()
	if hook != nil {
		return hook(note)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("srv-%d", f.seq)
	stored := note.Clone()
	stored.ID = id
	stored.Mirror.RevisionTag = "tag-" + id
	f.details[id] = stored
	return &remote.CreateResult{ServerID: id, Tag: stored.Mirror.RevisionTag}, nil
}

func (f *fakeRemote) UpdateNote(ctx context.Context, id, tag string, note *domain.Note) (string, error) {
	f.mu.Lock()
	f.updateCalls = append(f.updateCalls, updateCall{ID: id, Tag: tag})
	hook := f.updateHook
	f.mu.Unlock()
	if hook != nil {
		return hook(id, tag, note)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.details[id]
	if !ok {
		return "", remote.ErrNotFound
	}
	if current.Tag() != tag {
		return "", &remote.ConflictError{CurrentTag: current.Tag()}
	}
	stored := note.Clone()
	stored.Mirror.RevisionTag = tag + "+"
	f.details[id] = stored
	return stored.Mirror.RevisionTag, nil
}

func (f *fakeRemote) DeleteNote(ctx context.Context, id, tag string, purge bool) error {
	f.mu.Lock()
	f.deleteCalls = append(f.deleteCalls, deleteCall{ID: id, Tag: tag, Purge: purge})
	hook := f.deleteHook
	f.mu.Unlock()
	if hook != nil {
		return hook(id, tag, purge)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.details, id)
	return nil
}

func (f *fakeRemote) CreateFolder(ctx context.Context, folder *domain.Folder) (*remote.CreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.folderCreate = append(f.folderCreate, folder.ID)
	id := fmt.Sprintf("srvf-%d", f.seq)
	return &remote.CreateResult{ServerID: id, Tag: "tag-" + id}, nil
}

func (f *fakeRemote) RenameFolder(ctx context.Context, id, tag, name string) (string, error) {
	return tag + "+", nil
}

func (f *fakeRemote) DeleteFolder(ctx context.Context, id, tag string) error {
	return nil
}

func (f *fakeRemote) DownloadAsset(ctx context.Context, id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, id)
	if d, ok := f.assets[id]; ok {
		return d, nil
	}
	return nil, remote.ErrNotFound
}

func (f *fakeRemote) UploadAsset(ctx context.Context, name string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.uploadCalls = append(f.uploadCalls, name)
	return fmt.Sprintf("asset-%d", f.seq), nil
}

type fakeSession struct {
	mu      sync.Mutex
	online  bool
	authErr error
}

func (s *fakeSession) IsOnline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *fakeSession) Token() string { return "token" }

func (s *fakeSession) AuthError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authErr
}

func (s *fakeSession) setOnline(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = v
}

// testEnv wires every service against in-memory collaborators.
type testEnv struct {
	notes    *mockNoteRepo
	folders  *mockFolderRepo
	ops      *mockOperationRepo
	pending  *mockPendingDeletionRepo
	status   *mockSyncStatusRepo
	assets   *mockAssetStore
	remote   *fakeRemote
	session  *fakeSession
	queue    *OperationQueue
	resolver *Resolver
	sync     *SyncService
	service  *NoteService
}

func newTestEnv() *testEnv {
	notes := newMockNoteRepo()
	env := &testEnv{
		notes:    notes,
		folders:  newMockFolderRepo(notes),
		ops:      newMockOperationRepo(),
		pending:  newMockPendingDeletionRepo(),
		status:   &mockSyncStatusRepo{},
		assets:   newMockAssetStore(),
		remote:   newFakeRemote(),
		session:  &fakeSession{online: true},
		resolver: NewResolver(DefaultTimestampTolerance),
	}

	repos := Repositories{
		Notes:            env.notes,
		Folders:          env.folders,
		PendingDeletions: env.pending,
		SyncStatus:       env.status,
		Assets:           env.assets,
	}
	logger := logging.Discard()

	env.queue = NewOperationQueue(env.ops, logger)
	env.sync = NewSyncService(repos, env.remote, env.queue, env.resolver, env.session,
		SyncOptions{PrivateFolderID: "2", AssetConcurrency: 2}, logger)
	env.service = NewNoteService(repos, env.remote, env.queue, env.session, "2", logger)
	return env
}

func (e *testEnv) liveOps() []*domain.OfflineOperation {
	ops, _ := e.queue.DequeuePending(context.Background())
	return ops
}

var errBoom = errors.New("boom")
