package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/simple-storage/pkg/simplestorage"
)

// DeleteNodesRequest is the request body for deleting files and folders
type DeleteNodesRequest struct {
	IDs         []string `json:"ids"`
	OnlyFiles   bool     `json:"only_files,omitempty"`
	OnlyFolders bool     `json:"only_folders,omitempty"`
}

// PurgeResponse is the response body for a purge sweep
type PurgeResponse struct {
	Removed int `json:"removed"`
}

// NodesHandler handles deletion and reconciliation requests
type NodesHandler struct {
	service simplestorage.Service
}

// NewNodesHandler creates a new nodes handler
func NewNodesHandler(service simplestorage.Service) *NodesHandler {
	return &NodesHandler{service: service}
}

// DeleteNodes deletes the requested files and folders. File deletions
// release a reference; folder deletions cascade through the subtree.
func (h *NodesHandler) DeleteNodes(w http.ResponseWriter, r *http.Request) {
	var req DeleteNodesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if len(req.IDs) == 0 {
		http.Error(w, "Missing required 'ids' field", http.StatusBadRequest)
		return
	}
	if req.OnlyFiles && req.OnlyFolders {
		http.Error(w, "only_files and only_folders are mutually exclusive", http.StatusBadRequest)
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, idStr := range req.IDs {
		id, err := uuid.Parse(idStr)
		if err != nil {
			slog.Error("Invalid node ID", "node_id", idStr, "error", err)
			http.Error(w, "Invalid node ID: "+idStr, http.StatusBadRequest)
			return
		}
		ids = append(ids, id)
	}

	if err := h.service.DeleteNodes(r.Context(), simplestorage.DeleteNodesRequest{
		IDs:         ids,
		OnlyFiles:   req.OnlyFiles,
		OnlyFolders: req.OnlyFolders,
	}); err != nil {
		writeServiceError(w, r, "delete nodes", err)
		return
	}

	slog.Info("Nodes deleted", "count", len(ids))
	w.WriteHeader(http.StatusNoContent)
}

// PurgeOrphans runs a reconciliation sweep removing blobs with no live metadata
func (h *NodesHandler) PurgeOrphans(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.PurgeOrphans(r.Context())
	if err != nil {
		writeServiceError(w, r, "purge orphans", err)
		return
	}

	slog.Info("Orphans purged", "removed", removed)
	render.JSON(w, r, PurgeResponse{Removed: removed})
}
