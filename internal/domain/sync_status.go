package domain

import "time"

// SyncStatus is the persisted sync cursor. A missing status forces a full sync.
type SyncStatus struct {
	LastSyncTime     time.Time       `json:"last_sync_time"`
	SyncTag          string          `json:"sync_tag"`
	SyncedNoteIDs    map[string]bool `json:"synced_note_ids"`
	LastPageSyncTime time.Time       `json:"last_page_sync_time"`
}

func NewSyncStatus() *SyncStatus {
	return &SyncStatus{SyncedNoteIDs: make(map[string]bool)}
}

func (s *SyncStatus) Clone() *SyncStatus {
	c := *s
	c.SyncedNoteIDs = make(map[string]bool, len(s.SyncedNoteIDs))
	for id := range s.SyncedNoteIDs {
		c.SyncedNoteIDs[id] = true
	}
	return &c
}

type PendingDeletion struct {
	NoteID    string    `json:"note_id"`
	Tag       string    `json:"tag"`
	Purge     bool      `json:"purge"`
	CreatedAt time.Time `json:"created_at"`
}

type SyncKind string

const (
	SyncKindFull        SyncKind = "full"
	SyncKindIncremental SyncKind = "incremental"
	SyncKindReplay      SyncKind = "replay"
)

type SyncResult struct {
	Kind               SyncKind  `json:"kind"`
	TotalNotes         int       `json:"total_notes"`
	SyncedNotes        int       `json:"synced_notes"`
	SkippedNotes       int       `json:"skipped_notes"`
	LocalMutations     int       `json:"local_mutations"`
	Uploaded           int       `json:"uploaded"`
	DeletedLocal       int       `json:"deleted_local"`
	DeletedRemote      int       `json:"deleted_remote"`
	ReplayedOperations int       `json:"replayed_operations"`
	FailedOperations   int       `json:"failed_operations"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
}

// SyncProgress is the observable state of the coordinator. It has no behavioral effect.
type SyncProgress struct {
	IsSyncing  bool        `json:"is_syncing"`
	Kind       SyncKind    `json:"kind,omitempty"`
	Progress   float64     `json:"progress"`
	Message    string      `json:"message"`
	LastResult *SyncResult `json:"last_result,omitempty"`
	LastError  string      `json:"last_error,omitempty"`
}
