package simplestorage

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrFileNotFound indicates a storage file was not found
	ErrFileNotFound = errors.New("storage file not found")

	// ErrFolderNotFound indicates a storage folder was not found
	ErrFolderNotFound = errors.New("storage folder not found")

	// ErrFileExists indicates a file with the same content hash already exists.
	// This is an expected, recoverable condition: the upload service converts
	// it into a reference-count increment on the existing record.
	ErrFileExists = errors.New("file with content hash already exists")

	// ErrFolderExists indicates the root folder already exists
	ErrFolderExists = errors.New("root folder already exists")

	// ErrInvalidRequest indicates required request fields are missing or invalid
	ErrInvalidRequest = errors.New("invalid request")

	// ErrPermissionDenied indicates the actor lacks the required permission
	ErrPermissionDenied = errors.New("permission denied")

	// ErrStorageBackendNotFound indicates a storage backend was not found
	ErrStorageBackendNotFound = errors.New("storage backend not found")

	// ErrUploadFailed indicates an upload operation failed
	ErrUploadFailed = errors.New("upload failed")
)

// FileError represents an error related to file operations
type FileError struct {
	FileID uuid.UUID
	Op     string
	Err    error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file operation %s failed for file %s: %v", e.Op, e.FileID, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// FolderError represents an error related to folder operations
type FolderError struct {
	FolderID uuid.UUID
	Op       string
	Err      error
}

func (e *FolderError) Error() string {
	return fmt.Sprintf("folder operation %s failed for folder %s: %v", e.Op, e.FolderID, e.Err)
}

func (e *FolderError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
