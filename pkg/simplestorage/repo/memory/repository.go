// Package memory provides an in-memory implementation of the
// simplestorage.Repository interface, intended for testing and development.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tendant/simple-storage/pkg/simplestorage"
)

// Repository is an in-memory implementation of simplestorage.Repository.
//
// It enforces the same uniqueness rules as the SQL schema: one row per
// content hash and a single root folder. All mutations happen under a
// write lock, which makes the reference-count updates atomic.
type Repository struct {
	mu      sync.RWMutex
	files   map[uuid.UUID]*simplestorage.StorageFile
	folders map[uuid.UUID]*simplestorage.StorageFolder
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		files:   make(map[uuid.UUID]*simplestorage.StorageFile),
		folders: make(map[uuid.UUID]*simplestorage.StorageFolder),
	}
}

func copyFile(f *simplestorage.StorageFile) *simplestorage.StorageFile {
	c := *f
	if f.FolderID != nil {
		folderID := *f.FolderID
		c.FolderID = &folderID
	}
	return &c
}

func copyFolder(f *simplestorage.StorageFolder) *simplestorage.StorageFolder {
	c := *f
	if f.ParentID != nil {
		parentID := *f.ParentID
		c.ParentID = &parentID
	}
	return &c
}

// File operations

func (r *Repository) CreateFile(ctx context.Context, file *simplestorage.StorageFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.files {
		if existing.ContentHash == file.ContentHash {
			return simplestorage.ErrFileExists
		}
	}

	r.files[file.ID] = copyFile(file)
	return nil
}

func (r *Repository) GetFile(ctx context.Context, id uuid.UUID) (*simplestorage.StorageFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	file, exists := r.files[id]
	if !exists {
		return nil, simplestorage.ErrFileNotFound
	}

	return copyFile(file), nil
}

func (r *Repository) GetFileByHash(ctx context.Context, contentHash string) (*simplestorage.StorageFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, file := range r.files {
		if file.ContentHash == contentHash {
			return copyFile(file), nil
		}
	}

	return nil, simplestorage.ErrFileNotFound
}

func (r *Repository) UpdateFile(ctx context.Context, file *simplestorage.StorageFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.files[file.ID]; !exists {
		return simplestorage.ErrFileNotFound
	}

	r.files[file.ID] = copyFile(file)
	return nil
}

func (r *Repository) DeleteFile(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.files[id]; !exists {
		return simplestorage.ErrFileNotFound
	}

	delete(r.files, id)
	return nil
}

func (r *Repository) ListFilesByFolder(ctx context.Context, folderID uuid.UUID) ([]*simplestorage.StorageFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var files []*simplestorage.StorageFile
	for _, file := range r.files {
		if file.FolderID != nil && *file.FolderID == folderID {
			files = append(files, copyFile(file))
		}
	}

	return files, nil
}

func (r *Repository) IncrementFileRefs(ctx context.Context, id uuid.UUID) (*simplestorage.StorageFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, exists := r.files[id]
	if !exists {
		return nil, simplestorage.ErrFileNotFound
	}

	file.ReferenceCount++
	return copyFile(file), nil
}

func (r *Repository) DecrementFileRefs(ctx context.Context, id uuid.UUID) (*simplestorage.StorageFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	file, exists := r.files[id]
	if !exists {
		return nil, simplestorage.ErrFileNotFound
	}

	if file.ReferenceCount > 0 {
		file.ReferenceCount--
	}
	return copyFile(file), nil
}

func (r *Repository) ListFileKeys(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.files))
	for _, file := range r.files {
		keys = append(keys, file.ObjectKey())
	}

	return keys, nil
}

// Folder operations

func (r *Repository) CreateFolder(ctx context.Context, folder *simplestorage.StorageFolder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if folder.ParentID == nil {
		for _, existing := range r.folders {
			if existing.ParentID == nil {
				return simplestorage.ErrFolderExists
			}
		}
	}

	r.folders[folder.ID] = copyFolder(folder)
	return nil
}

func (r *Repository) GetFolder(ctx context.Context, id uuid.UUID) (*simplestorage.StorageFolder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	folder, exists := r.folders[id]
	if !exists {
		return nil, simplestorage.ErrFolderNotFound
	}

	return copyFolder(folder), nil
}

func (r *Repository) GetRootFolder(ctx context.Context) (*simplestorage.StorageFolder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, folder := range r.folders {
		if folder.ParentID == nil {
			return copyFolder(folder), nil
		}
	}

	return nil, simplestorage.ErrFolderNotFound
}

func (r *Repository) DeleteFolder(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.folders[id]; !exists {
		return simplestorage.ErrFolderNotFound
	}

	delete(r.folders, id)
	return nil
}

func (r *Repository) ListChildFolders(ctx context.Context, parentID uuid.UUID) ([]*simplestorage.StorageFolder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var folders []*simplestorage.StorageFolder
	for _, folder := range r.folders {
		if folder.ParentID != nil && *folder.ParentID == parentID {
			folders = append(folders, copyFolder(folder))
		}
	}

	return folders, nil
}
