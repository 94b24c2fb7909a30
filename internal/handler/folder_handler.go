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

type FolderManager interface {
	ListFolders(ctx context.Context) ([]*domain.Folder, error)
	CreateFolder(ctx context.Context, req *domain.CreateFolderRequest) (*domain.Folder, error)
	RenameFolder(ctx context.Context, id string, req *domain.RenameFolderRequest) (*domain.Folder, error)
	DeleteFolder(ctx context.Context, id string) error
}

type FolderHandler struct {
	folders  FolderManager
	validate *validator.Validate
}

func NewFolderHandler(folders FolderManager) *FolderHandler {
	return &FolderHandler{
		folders:  folders,
		validate: validator.New(),
	}
}

func (h *FolderHandler) List(w http.ResponseWriter, r *http.Request) {
	folders, err := h.folders.ListFolders(r.Context())
	if err != nil {
		response.InternalError(w, "Failed to list folders")
		return
	}

	if folders == nil {
		folders = []*domain.Folder{}
	}
	response.Success(w, folders)
}

func (h *FolderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	folder, err := h.folders.CreateFolder(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Created(w, folder)
}

func (h *FolderHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req domain.RenameFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	folder, err := h.folders.RenameFolder(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.Success(w, folder)
}

func (h *FolderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.folders.DeleteFolder(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
