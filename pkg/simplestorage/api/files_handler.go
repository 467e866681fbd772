// Package api exposes the storage service over HTTP using chi and render.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/simple-storage/pkg/simplestorage"
)

// FileResponse is the response body for a file
type FileResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	MimeType       string    `json:"mime_type"`
	SizeBytes      int64     `json:"size_bytes"`
	ContentHash    string    `json:"content_hash"`
	ReferenceCount int       `json:"reference_count"`
	Description    string    `json:"description,omitempty"`
	FolderID       string    `json:"folder_id,omitempty"`
	Deduplicated   bool      `json:"deduplicated,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func newFileResponse(file *simplestorage.StorageFile) FileResponse {
	resp := FileResponse{
		ID:             file.ID.String(),
		Name:           file.Name,
		MimeType:       file.MimeType,
		SizeBytes:      file.SizeBytes,
		ContentHash:    file.ContentHash,
		ReferenceCount: file.ReferenceCount,
		Description:    file.Description,
		Deduplicated:   file.ReferenceCount > 1,
		CreatedAt:      file.CreatedAt,
		UpdatedAt:      file.UpdatedAt,
	}
	if file.FolderID != nil {
		resp.FolderID = file.FolderID.String()
	}
	return resp
}

// FilesHandler handles HTTP requests for files
type FilesHandler struct {
	service simplestorage.Service
}

// NewFilesHandler creates a new files handler
func NewFilesHandler(service simplestorage.Service) *FilesHandler {
	return &FilesHandler{service: service}
}

// Routes returns the routes for files
func (h *FilesHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.UploadFiles)
	r.Get("/{fileID}", h.GetFile)
	r.Put("/{fileID}", h.UpdateFile)
	r.Get("/{fileID}/download", h.DownloadFile)

	return r
}

const maxUploadMemory = 32 << 20 // 32 MB held in memory; the rest spills to disk

// UploadFiles accepts one or more files as multipart form data. Each part
// named "file" becomes an upload; duplicate content is absorbed into an
// existing record with its reference count bumped.
func (h *FilesHandler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		slog.Error("Invalid multipart form", "error", err)
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	parts := r.MultipartForm.File["file"]
	if len(parts) == 0 {
		http.Error(w, "Missing required 'file' part", http.StatusBadRequest)
		return
	}

	var folderID *uuid.UUID
	if folderStr := r.FormValue("folder_id"); folderStr != "" {
		id, err := uuid.Parse(folderStr)
		if err != nil {
			slog.Error("Invalid folder ID", "folder_id", folderStr, "error", err)
			http.Error(w, "Invalid folder ID", http.StatusBadRequest)
			return
		}
		folderID = &id
	}
	description := r.FormValue("description")

	reqs := make([]simplestorage.UploadFileRequest, 0, len(parts))
	readers := make([]io.Closer, 0, len(parts))
	defer func() {
		for _, rc := range readers {
			rc.Close()
		}
	}()

	for _, part := range parts {
		f, err := part.Open()
		if err != nil {
			slog.Error("Failed to open uploaded part", "file_name", part.Filename, "error", err)
			http.Error(w, "Failed to read uploaded file", http.StatusBadRequest)
			return
		}
		readers = append(readers, f)

		reqs = append(reqs, simplestorage.UploadFileRequest{
			Reader:      f,
			FileName:    part.Filename,
			MimeType:    part.Header.Get("Content-Type"),
			SizeBytes:   part.Size,
			Description: description,
			FolderID:    folderID,
		})
	}

	files, err := h.service.UploadFiles(r.Context(), reqs)
	if err != nil {
		writeServiceError(w, r, "upload files", err)
		return
	}

	resp := make([]FileResponse, len(files))
	for i, file := range files {
		resp[i] = newFileResponse(file)
	}

	slog.Info("Files uploaded", "count", len(resp))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// GetFile retrieves file metadata by ID
func (h *FilesHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "fileID")
	id, err := uuid.Parse(idStr)
	if err != nil {
		slog.Error("Invalid file ID", "file_id", idStr, "error", err)
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}

	file, err := h.service.GetFile(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "get file", err)
		return
	}

	render.JSON(w, r, newFileResponse(file))
}

// UpdateFileRequest is the request body for updating file metadata
type UpdateFileRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	FolderID    *string `json:"folder_id,omitempty"`
}

// UpdateFile renames, moves or re-describes a file
func (h *FilesHandler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "fileID")
	id, err := uuid.Parse(idStr)
	if err != nil {
		slog.Error("Invalid file ID", "file_id", idStr, "error", err)
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}

	var req UpdateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	update := simplestorage.UpdateFileRequest{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
	}
	if req.FolderID != nil {
		folderID, err := uuid.Parse(*req.FolderID)
		if err != nil {
			slog.Error("Invalid folder ID", "folder_id", *req.FolderID, "error", err)
			http.Error(w, "Invalid folder ID", http.StatusBadRequest)
			return
		}
		update.FolderID = &folderID
	}

	file, err := h.service.UpdateFile(r.Context(), update)
	if err != nil {
		writeServiceError(w, r, "update file", err)
		return
	}

	slog.Info("File updated", "file_id", idStr)
	render.JSON(w, r, newFileResponse(file))
}

// DownloadFile streams the file's bytes
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "fileID")
	id, err := uuid.Parse(idStr)
	if err != nil {
		slog.Error("Invalid file ID", "file_id", idStr, "error", err)
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}

	reader, file, err := h.service.DownloadFile(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "download file", err)
		return
	}
	defer reader.Close()

	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Name+`"`)

	if _, err := io.Copy(w, reader); err != nil {
		slog.Error("Failed to stream file", "file_id", idStr, "error", err)
	}
}

// writeServiceError maps service errors to HTTP status codes
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, simplestorage.ErrFileNotFound),
		errors.Is(err, simplestorage.ErrFolderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, simplestorage.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, simplestorage.ErrPermissionDenied):
		status = http.StatusForbidden
	default:
		var storageErr *simplestorage.StorageError
		if errors.As(err, &storageErr) {
			status = http.StatusBadGateway
		}
	}

	slog.Error("Request failed", "op", op, "error", err)
	http.Error(w, err.Error(), status)
}
