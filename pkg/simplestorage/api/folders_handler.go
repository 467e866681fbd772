package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/simple-storage/pkg/simplestorage"
)

// FolderResponse is the response body for a folder
type FolderResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  string    `json:"parent_id,omitempty"`
	Root      bool      `json:"root,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FolderSummaryResponse is the response body for a resolved folder listing
type FolderSummaryResponse struct {
	Folder  FolderResponse   `json:"folder"`
	Files   []FileResponse   `json:"files"`
	Folders []FolderResponse `json:"folders,omitempty"`
}

func newFolderResponse(folder *simplestorage.StorageFolder) FolderResponse {
	resp := FolderResponse{
		ID:        folder.ID.String(),
		Name:      folder.Name,
		Root:      folder.IsRoot(),
		CreatedAt: folder.CreatedAt,
		UpdatedAt: folder.UpdatedAt,
	}
	if folder.ParentID != nil {
		resp.ParentID = folder.ParentID.String()
	}
	return resp
}

// CreateFolderRequest is the request body for creating a folder
type CreateFolderRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

// FoldersHandler handles HTTP requests for folders
type FoldersHandler struct {
	service simplestorage.Service
}

// NewFoldersHandler creates a new folders handler
func NewFoldersHandler(service simplestorage.Service) *FoldersHandler {
	return &FoldersHandler{service: service}
}

// Routes returns the routes for folders
func (h *FoldersHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateFolder)
	r.Get("/", h.ResolveRootFolder)
	r.Get("/{folderID}", h.ResolveFolder)

	return r
}

// CreateFolder creates a new folder; a missing parent_id places it under the root
func (h *FoldersHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var parentID *uuid.UUID
	if req.ParentID != "" {
		id, err := uuid.Parse(req.ParentID)
		if err != nil {
			slog.Error("Invalid parent ID", "parent_id", req.ParentID, "error", err)
			http.Error(w, "Invalid parent ID", http.StatusBadRequest)
			return
		}
		parentID = &id
	}

	folder, err := h.service.CreateFolder(r.Context(), simplestorage.CreateFolderRequest{
		Name:     req.Name,
		ParentID: parentID,
	})
	if err != nil {
		writeServiceError(w, r, "create folder", err)
		return
	}

	slog.Info("Folder created", "folder_id", folder.ID.String(), "name", folder.Name)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, newFolderResponse(folder))
}

// ResolveRootFolder lists the contents of the root folder
func (h *FoldersHandler) ResolveRootFolder(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, nil)
}

// ResolveFolder lists the contents of a folder by ID
func (h *FoldersHandler) ResolveFolder(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "folderID")
	id, err := uuid.Parse(idStr)
	if err != nil {
		slog.Error("Invalid folder ID", "folder_id", idStr, "error", err)
		http.Error(w, "Invalid folder ID", http.StatusBadRequest)
		return
	}

	h.resolve(w, r, &id)
}

func (h *FoldersHandler) resolve(w http.ResponseWriter, r *http.Request, folderID *uuid.UUID) {
	onlyFiles := r.URL.Query().Get("only_files") == "true"

	summary, err := h.service.ResolveFolder(r.Context(), simplestorage.ResolveFolderRequest{
		FolderID:  folderID,
		OnlyFiles: onlyFiles,
	})
	if err != nil {
		writeServiceError(w, r, "resolve folder", err)
		return
	}

	resp := FolderSummaryResponse{
		Folder: newFolderResponse(summary.Folder),
		Files:  make([]FileResponse, len(summary.Files)),
	}
	for i, file := range summary.Files {
		resp.Files[i] = newFileResponse(file)
	}
	for _, folder := range summary.Folders {
		resp.Folders = append(resp.Folders, newFolderResponse(folder))
	}

	render.JSON(w, r, resp)
}
