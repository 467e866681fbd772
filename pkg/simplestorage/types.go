package simplestorage

import (
	"time"

	"github.com/google/uuid"
)

// RootFolderName is the name assigned to the lazily created root folder.
const RootFolderName = "root"

// HashAlgorithm identifies the digest used for content addressing.
const HashAlgorithm = "sha256"

// Permission identifies an operation gated by the Authorizer.
type Permission string

// Permission constants (typed).
const (
	PermissionFileUpload   Permission = "storage.file.upload"
	PermissionFileDownload Permission = "storage.file.download"
	PermissionDelete       Permission = "storage.delete"
	PermissionFolderCreate Permission = "storage.folder.create"
	PermissionFolderRead   Permission = "storage.folder.read"
	PermissionPurge        Permission = "storage.purge"
)

// StorageFile represents one logical, deduplicated blob.
//
// ContentHash is unique across all files: exactly one backend object exists
// per digest, stored under the ID of the upload that first produced it.
// ReferenceCount equals the number of upload events that resolved to this
// hash and never drops below zero.
type StorageFile struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	MimeType       string     `json:"mime_type,omitempty"`
	SizeBytes      int64      `json:"size_bytes"`
	ContentHash    string     `json:"content_hash"`
	ReferenceCount int        `json:"reference_count"`
	Description    string     `json:"description,omitempty"`
	FolderID       *uuid.UUID `json:"folder_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ObjectKey returns the backend key the file's blob is stored under.
func (f *StorageFile) ObjectKey() string {
	return f.ID.String()
}

// StorageFolder is a directory node in the folder tree.
//
// The tree has a single root: the one folder whose ParentID is nil. Every
// other folder has exactly one parent.
type StorageFolder struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsRoot reports whether the folder is the root of the tree.
func (f *StorageFolder) IsRoot() bool {
	return f.ParentID == nil
}

// StorageFolderSummary is a folder together with its eagerly loaded children.
type StorageFolderSummary struct {
	Folder  *StorageFolder   `json:"folder"`
	Files   []*StorageFile   `json:"files"`
	Folders []*StorageFolder `json:"folders,omitempty"`
}
