package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/tendant/simple-storage/pkg/simplestorage"
)

// Backend is an in-memory implementation of the simplestorage.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

type object struct {
	data        []byte
	contentType string
	updatedAt   time.Time
}

// New creates a new in-memory storage backend
func New() simplestorage.BlobStore {
	return &Backend{
		objects: make(map[string]object),
	}
}

// Put stores the bytes read from reader under objectKey. The object only
// becomes visible once the reader has been fully consumed, so a mid-stream
// read error never publishes a partial object.
func (b *Backend) Put(ctx context.Context, objectKey string, reader io.Reader, params simplestorage.PutParams) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	contentType := params.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[objectKey] = object{
		data:        data,
		contentType: contentType,
		updatedAt:   time.Now().UTC(),
	}
	return nil
}

// Download returns a reader over the object's bytes
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, errors.New("object not found")
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete removes the object; deleting a missing key is not an error
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.objects, objectKey)
	return nil
}

// GetObjectMeta retrieves metadata for an object in memory
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*simplestorage.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, errors.New("object not found")
	}

	meta := &simplestorage.ObjectMeta{
		Key:         objectKey,
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		UpdatedAt:   obj.updatedAt,
		Metadata:    map[string]string{"content_type": obj.contentType},
	}

	return meta, nil
}

// ListKeys enumerates every object key in the backend
func (b *Backend) ListKeys(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
