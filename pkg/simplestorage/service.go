package simplestorage

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service defines the main interface for the simple-storage library
type Service interface {
	// File operations
	UploadFile(ctx context.Context, req UploadFileRequest) (*StorageFile, error)
	UploadFiles(ctx context.Context, reqs []UploadFileRequest) ([]*StorageFile, error)
	GetFile(ctx context.Context, id uuid.UUID) (*StorageFile, error)
	UpdateFile(ctx context.Context, req UpdateFileRequest) (*StorageFile, error)
	DownloadFile(ctx context.Context, id uuid.UUID) (io.ReadCloser, *StorageFile, error)

	// Folder operations
	ResolveFolder(ctx context.Context, req ResolveFolderRequest) (*StorageFolderSummary, error)
	CreateFolder(ctx context.Context, req CreateFolderRequest) (*StorageFolder, error)

	// Deletion and reconciliation
	DeleteNodes(ctx context.Context, req DeleteNodesRequest) error
	PurgeOrphans(ctx context.Context) (int, error)

	// Storage backend operations
	RegisterBackend(name string, backend BlobStore)
	GetBackend(name string) (BlobStore, error)
}
