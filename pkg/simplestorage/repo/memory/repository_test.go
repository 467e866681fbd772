package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-storage/pkg/simplestorage"
	"github.com/tendant/simple-storage/pkg/simplestorage/repo/memory"
)

func newTestFile(hash string) *simplestorage.StorageFile {
	now := time.Now().UTC()
	return &simplestorage.StorageFile{
		ID:             uuid.New(),
		Name:           "test.txt",
		MimeType:       "text/plain",
		SizeBytes:      4,
		ContentHash:    hash,
		ReferenceCount: 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestFileOperations(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		file := newTestFile("hash-a")
		require.NoError(t, repo.CreateFile(ctx, file))

		got, err := repo.GetFile(ctx, file.ID)
		require.NoError(t, err)
		assert.Equal(t, file.ID, got.ID)
		assert.Equal(t, "hash-a", got.ContentHash)

		byHash, err := repo.GetFileByHash(ctx, "hash-a")
		require.NoError(t, err)
		assert.Equal(t, file.ID, byHash.ID)
	})

	t.Run("DuplicateHashIsRejected", func(t *testing.T) {
		dup := newTestFile("hash-a")
		err := repo.CreateFile(ctx, dup)
		assert.ErrorIs(t, err, simplestorage.ErrFileExists)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := repo.GetFile(ctx, uuid.New())
		assert.ErrorIs(t, err, simplestorage.ErrFileNotFound)

		_, err = repo.GetFileByHash(ctx, "no-such-hash")
		assert.ErrorIs(t, err, simplestorage.ErrFileNotFound)
	})

	t.Run("ReturnedRecordsAreCopies", func(t *testing.T) {
		file := newTestFile("hash-copy")
		require.NoError(t, repo.CreateFile(ctx, file))

		got, err := repo.GetFile(ctx, file.ID)
		require.NoError(t, err)
		got.Name = "mutated"

		again, err := repo.GetFile(ctx, file.ID)
		require.NoError(t, err)
		assert.Equal(t, "test.txt", again.Name)
	})

	t.Run("Delete", func(t *testing.T) {
		file := newTestFile("hash-delete")
		require.NoError(t, repo.CreateFile(ctx, file))
		require.NoError(t, repo.DeleteFile(ctx, file.ID))

		_, err := repo.GetFile(ctx, file.ID)
		assert.ErrorIs(t, err, simplestorage.ErrFileNotFound)

		assert.ErrorIs(t, repo.DeleteFile(ctx, file.ID), simplestorage.ErrFileNotFound)
	})
}

func TestReferenceCounts(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	file := newTestFile("hash-refs")
	require.NoError(t, repo.CreateFile(ctx, file))

	updated, err := repo.IncrementFileRefs(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.ReferenceCount)

	updated, err = repo.DecrementFileRefs(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.ReferenceCount)

	updated, err = repo.DecrementFileRefs(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.ReferenceCount)

	// Never drops below zero
	updated, err = repo.DecrementFileRefs(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.ReferenceCount)

	_, err = repo.IncrementFileRefs(ctx, uuid.New())
	assert.ErrorIs(t, err, simplestorage.ErrFileNotFound)
}

func TestFolderOperations(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()

	root := &simplestorage.StorageFolder{
		ID:        uuid.New(),
		Name:      simplestorage.RootFolderName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	t.Run("RootSingleton", func(t *testing.T) {
		_, err := repo.GetRootFolder(ctx)
		assert.ErrorIs(t, err, simplestorage.ErrFolderNotFound)

		require.NoError(t, repo.CreateFolder(ctx, root))

		got, err := repo.GetRootFolder(ctx)
		require.NoError(t, err)
		assert.Equal(t, root.ID, got.ID)

		second := &simplestorage.StorageFolder{
			ID:        uuid.New(),
			Name:      "another root",
			CreatedAt: now,
			UpdatedAt: now,
		}
		assert.ErrorIs(t, repo.CreateFolder(ctx, second), simplestorage.ErrFolderExists)
	})

	t.Run("ChildrenAndListing", func(t *testing.T) {
		rootID := root.ID
		child := &simplestorage.StorageFolder{
			ID:        uuid.New(),
			Name:      "docs",
			ParentID:  &rootID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, repo.CreateFolder(ctx, child))

		children, err := repo.ListChildFolders(ctx, root.ID)
		require.NoError(t, err)
		require.Len(t, children, 1)
		assert.Equal(t, child.ID, children[0].ID)

		file := newTestFile("hash-in-folder")
		childID := child.ID
		file.FolderID = &childID
		require.NoError(t, repo.CreateFile(ctx, file))

		files, err := repo.ListFilesByFolder(ctx, child.ID)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, file.ID, files[0].ID)

		keys, err := repo.ListFileKeys(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, file.ObjectKey())
	})

	t.Run("DeleteFolder", func(t *testing.T) {
		rootID := root.ID
		doomed := &simplestorage.StorageFolder{
			ID:        uuid.New(),
			Name:      "doomed",
			ParentID:  &rootID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, repo.CreateFolder(ctx, doomed))
		require.NoError(t, repo.DeleteFolder(ctx, doomed.ID))

		_, err := repo.GetFolder(ctx, doomed.ID)
		assert.ErrorIs(t, err, simplestorage.ErrFolderNotFound)

		assert.ErrorIs(t, repo.DeleteFolder(ctx, doomed.ID), simplestorage.ErrFolderNotFound)
	})
}
