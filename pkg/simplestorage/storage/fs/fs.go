package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/tendant/simple-storage/pkg/simplestorage"
)

// Backend is a filesystem implementation of the simplestorage.BlobStore interface
type Backend struct {
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing objects
}

// New creates a new filesystem storage backend
func New(config Config) (simplestorage.BlobStore, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir: config.BaseDir,
	}, nil
}

func (b *Backend) objectPath(objectKey string) string {
	return filepath.Join(b.baseDir, objectKey)
}

// Put stores the bytes read from reader under objectKey. The write is staged
// to a temporary file and published with an atomic rename, so a failed or
// aborted upload never leaves a partial object visible under the key.
func (b *Backend) Put(ctx context.Context, objectKey string, reader io.Reader, params simplestorage.PutParams) error {
	filePath := b.objectPath(objectKey)

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	pending, err := renameio.TempFile(dir, filePath)
	if err != nil {
		return fmt.Errorf("failed to stage file: %w", err)
	}
	defer pending.Cleanup()

	if _, err := io.Copy(pending, reader); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("failed to publish file: %w", err)
	}

	return nil
}

// Download returns a reader over the object's bytes
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	file, err := os.Open(b.objectPath(objectKey))
	if os.IsNotExist(err) {
		return nil, errors.New("object not found")
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete removes the object; deleting a missing key is not an error
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	filePath := b.objectPath(objectKey)

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	b.cleanupEmptyDirectories(filepath.Dir(filePath))

	return nil
}

// GetObjectMeta retrieves metadata for an object in the filesystem
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*simplestorage.ObjectMeta, error) {
	filePath := b.objectPath(objectKey)

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, errors.New("object not found")
	} else if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	// Detect content type from the first bytes
	contentType := "application/octet-stream"
	if file, err := os.Open(filePath); err == nil {
		defer file.Close()
		buffer := make([]byte, 512)
		if n, err := file.Read(buffer); err == nil {
			contentType = http.DetectContentType(buffer[:n])
		}
	}

	meta := &simplestorage.ObjectMeta{
		Key:         objectKey,
		Size:        info.Size(),
		ContentType: contentType,
		UpdatedAt:   info.ModTime(),
		Metadata:    map[string]string{"content_type": contentType},
	}

	return meta, nil
}

// ListKeys enumerates every object key under the base directory
func (b *Backend) ListKeys(ctx context.Context) ([]string, error) {
	var keys []string

	err := filepath.WalkDir(b.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.baseDir, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk base directory: %w", err)
	}

	return keys, nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir {
		return
	}

	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
