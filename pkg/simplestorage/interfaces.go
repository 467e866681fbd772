package simplestorage

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// BlobStore defines the interface for blob storage backends.
//
// Implementations must make Put atomic from the caller's perspective: either
// the object is fully readable under its key afterwards, or the call fails
// and no partial object is visible. Delete is idempotent; deleting a missing
// key is not an error.
type BlobStore interface {
	// Put stores the bytes read from reader under objectKey
	Put(ctx context.Context, objectKey string, reader io.Reader, params PutParams) error

	// Download returns a reader over the object's bytes
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes the object; missing keys are ignored
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for a stored object
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)

	// ListKeys enumerates every object key in the backend. Used by the
	// purge sweep to reconcile blobs against metadata.
	ListKeys(ctx context.Context) ([]string, error)
}

// Repository defines the interface for file and folder metadata persistence.
//
// Implementations must enforce uniqueness of StorageFile.ContentHash
// (CreateFile returns ErrFileExists on violation) and of the root folder
// (CreateFolder returns ErrFolderExists when a second nil-parent folder is
// inserted). The reference-count mutations are single atomic
// read-modify-writes inside the store, never read-then-write from
// application memory.
type Repository interface {
	// File operations
	CreateFile(ctx context.Context, file *StorageFile) error
	GetFile(ctx context.Context, id uuid.UUID) (*StorageFile, error)
	GetFileByHash(ctx context.Context, contentHash string) (*StorageFile, error)
	UpdateFile(ctx context.Context, file *StorageFile) error
	DeleteFile(ctx context.Context, id uuid.UUID) error
	ListFilesByFolder(ctx context.Context, folderID uuid.UUID) ([]*StorageFile, error)

	// IncrementFileRefs atomically adds one reference to the file and
	// returns the updated record.
	IncrementFileRefs(ctx context.Context, id uuid.UUID) (*StorageFile, error)

	// DecrementFileRefs atomically removes one reference, never dropping
	// below zero, and returns the updated record.
	DecrementFileRefs(ctx context.Context, id uuid.UUID) (*StorageFile, error)

	// ListFileKeys returns the backend object keys of all live files.
	ListFileKeys(ctx context.Context) ([]string, error)

	// Folder operations
	CreateFolder(ctx context.Context, folder *StorageFolder) error
	GetFolder(ctx context.Context, id uuid.UUID) (*StorageFolder, error)
	GetRootFolder(ctx context.Context) (*StorageFolder, error)
	DeleteFolder(ctx context.Context, id uuid.UUID) error
	ListChildFolders(ctx context.Context, parentID uuid.UUID) ([]*StorageFolder, error)
}

// Authorizer is the opaque permission-checking capability consumed before
// every mutating or listing operation. A nil error means the actor is
// allowed; denials are reported as errors wrapping ErrPermissionDenied.
type Authorizer interface {
	Authorize(ctx context.Context, actor string, permission Permission) error
}

// EventSink defines the interface for event handling
type EventSink interface {
	// FileUploaded is fired when novel content is stored
	FileUploaded(ctx context.Context, file *StorageFile) error

	// FileDeduplicated is fired when an upload resolved to existing content
	FileDeduplicated(ctx context.Context, file *StorageFile) error

	// FolderCreated is fired when a folder (including the root) is created
	FolderCreated(ctx context.Context, folder *StorageFolder) error

	// NodesDeleted is fired after a delete request completes
	NodesDeleted(ctx context.Context, ids []uuid.UUID) error

	// OrphansPurged is fired after a purge sweep with the number of
	// reclaimed objects
	OrphansPurged(ctx context.Context, removed int) error
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
	Metadata    map[string]string
}

// PutParams contains parameters for storing an object
type PutParams struct {
	ContentType string
	SizeBytes   int64
	FileName    string
}
