package fs_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-storage/pkg/simplestorage"
	"github.com/tendant/simple-storage/pkg/simplestorage/storage/fs"
)

func newTestBackend(t *testing.T) (simplestorage.BlobStore, string) {
	t.Helper()

	dir := t.TempDir()
	backend, err := fs.New(fs.Config{BaseDir: dir})
	require.NoError(t, err)

	return backend, dir
}

func TestNew(t *testing.T) {
	_, err := fs.New(fs.Config{})
	assert.Error(t, err)

	dir := filepath.Join(t.TempDir(), "nested", "storage")
	_, err = fs.New(fs.Config{BaseDir: dir})
	require.NoError(t, err)
	assert.DirExists(t, dir)
}

func TestPutAndDownload(t *testing.T) {
	backend, dir := newTestBackend(t)
	ctx := context.Background()

	err := backend.Put(ctx, "some-key", strings.NewReader("payload"), simplestorage.PutParams{})
	require.NoError(t, err)

	reader, err := backend.Download(ctx, "some-key")
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// No temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPutFailureLeavesNothing(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()

	failing := io.MultiReader(strings.NewReader("partial"), iotestErrReader{})
	err := backend.Put(ctx, "broken-key", failing, simplestorage.PutParams{})
	require.Error(t, err)

	_, err = backend.Download(ctx, "broken-key")
	assert.Error(t, err)

	keys, err := backend.ListKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

type iotestErrReader struct{}

func (iotestErrReader) Read([]byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}

func TestDelete(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, "key", strings.NewReader("x"), simplestorage.PutParams{}))
	require.NoError(t, backend.Delete(ctx, "key"))

	_, err := backend.Download(ctx, "key")
	assert.Error(t, err)

	// Deleting a missing key is not an error
	assert.NoError(t, backend.Delete(ctx, "key"))
}

func TestGetObjectMeta(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, "key", strings.NewReader("hello meta"), simplestorage.PutParams{}))

	meta, err := backend.GetObjectMeta(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "key", meta.Key)
	assert.Equal(t, int64(10), meta.Size)
	assert.NotEmpty(t, meta.ContentType)

	_, err = backend.GetObjectMeta(ctx, "missing")
	assert.Error(t, err)
}

func TestListKeys(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()

	keys, err := backend.ListKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, backend.Put(ctx, "a", strings.NewReader("1"), simplestorage.PutParams{}))
	require.NoError(t, backend.Put(ctx, "b", strings.NewReader("2"), simplestorage.PutParams{}))

	keys, err = backend.ListKeys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)
}
