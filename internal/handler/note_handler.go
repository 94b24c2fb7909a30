package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"notes-sync-client/internal/domain"
	"notes-sync-client/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// NoteManager is the foreground mutation path.
type NoteManager interface {
	List(ctx context.Context, folderID string) ([]*domain.Note, error)
	Get(ctx context.Context, id string) (*domain.Note, error)
	CreateNote(ctx context.Context, req *domain.CreateNoteRequest) (*domain.Note, error)
	UpdateNote(ctx context.Context, id string, req *domain.UpdateNoteRequest) (*domain.Note, error)
	DeleteNote(ctx context.Context, id string, purge bool) error
	UploadImage(ctx context.Context, noteID string, req *domain.UploadImageRequest) (*domain.Note, error)
}

type NoteHandler struct {
	notes    NoteManager
	validate *validator.Validate
}

func NewNoteHandler(notes NoteManager) *NoteHandler {
	return &NoteHandler{
		notes:    notes,
		validate: validator.New(),
	}
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	note, err := h.notes.CreateNote(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Created(w, note)
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	notes, err := h.notes.List(r.Context(), r.URL.Query().Get("folder_id"))
	if err != nil {
		response.InternalError(w, "Failed to list notes")
		return
	}

	if notes == nil {
		notes = []*domain.Note{}
	}
	response.Success(w, notes)
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	note, err := h.notes.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	note, err := h.notes.UpdateNote(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, note)
}

// Delete removes a note. ?purge=true skips the remote trash.
func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	purge := r.URL.Query().Get("purge") == "true"

	if err := h.notes.DeleteNote(r.Context(), mux.Vars(r)["id"], purge); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *NoteHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	var req domain.UploadImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	note, err := h.notes.UploadImage(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, note)
}
