package simplestorage

import (
	"io"

	"github.com/google/uuid"
)

// Request/Response DTOs

// UploadFileRequest contains parameters for uploading one file.
//
// Reader is consumed exactly once; SizeBytes is the declared size and may be
// zero when unknown (the observed size is recorded on the resulting file).
// A nil FolderID targets the root folder.
type UploadFileRequest struct {
	Reader      io.Reader
	FileName    string
	MimeType    string
	SizeBytes   int64
	Description string
	FolderID    *uuid.UUID
}

// UpdateFileRequest contains parameters for updating a file's metadata.
// Nil fields are left unchanged; the content itself is immutable.
type UpdateFileRequest struct {
	ID          uuid.UUID
	Name        *string
	Description *string
	FolderID    *uuid.UUID
}

// CreateFolderRequest contains parameters for creating a folder.
// A nil ParentID places the folder under the root.
type CreateFolderRequest struct {
	Name     string
	ParentID *uuid.UUID
}

// ResolveFolderRequest contains parameters for resolving a folder with its
// children. A nil FolderID resolves (creating if necessary) the root folder.
type ResolveFolderRequest struct {
	FolderID  *uuid.UUID
	OnlyFiles bool
}

// DeleteNodesRequest contains parameters for deleting files and folders by id.
type DeleteNodesRequest struct {
	IDs         []uuid.UUID
	OnlyFiles   bool
	OnlyFolders bool
}
