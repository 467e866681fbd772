package simplestorage_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-storage/pkg/simplestorage"
	"github.com/tendant/simple-storage/pkg/simplestorage/repo/memory"
	memorystorage "github.com/tendant/simple-storage/pkg/simplestorage/storage/memory"
)

// sha256("hello")
const helloDigest = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []simplestorage.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []simplestorage.Option{},
			expectError: true,
		},
		{
			name: "repository without blob store should fail",
			options: []simplestorage.Option{
				simplestorage.WithRepository(memory.New()),
			},
			expectError: true,
		},
		{
			name: "repository and blob store should succeed",
			options: []simplestorage.Option{
				simplestorage.WithRepository(memory.New()),
				simplestorage.WithBlobStore("memory", memorystorage.New()),
			},
			expectError: false,
		},
		{
			name: "multiple blob stores without default should fail",
			options: []simplestorage.Option{
				simplestorage.WithRepository(memory.New()),
				simplestorage.WithBlobStore("a", memorystorage.New()),
				simplestorage.WithBlobStore("b", memorystorage.New()),
			},
			expectError: true,
		},
		{
			name: "unknown default backend should fail",
			options: []simplestorage.Option{
				simplestorage.WithRepository(memory.New()),
				simplestorage.WithBlobStore("memory", memorystorage.New()),
				simplestorage.WithDefaultBackend("s3"),
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := simplestorage.New(tt.options...)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func setupTestService(t *testing.T) (simplestorage.Service, simplestorage.BlobStore) {
	t.Helper()

	repo := memory.New()
	store := memorystorage.New()

	svc, err := simplestorage.New(
		simplestorage.WithRepository(repo),
		simplestorage.WithBlobStore("memory", store),
		simplestorage.WithEventSink(simplestorage.NewNoopEventSink()),
	)
	require.NoError(t, err)
	require.NotNil(t, svc)

	return svc, store
}

func uploadString(t *testing.T, svc simplestorage.Service, name, content string) *simplestorage.StorageFile {
	t.Helper()

	file, err := svc.UploadFile(context.Background(), simplestorage.UploadFileRequest{
		Reader:   strings.NewReader(content),
		FileName: name,
		MimeType: "text/plain",
	})
	require.NoError(t, err)
	require.NotNil(t, file)

	return file
}

func TestUploadFile(t *testing.T) {
	ctx := context.Background()

	t.Run("NovelContent", func(t *testing.T) {
		svc, store := setupTestService(t)

		file := uploadString(t, svc, "hello.txt", "hello")
		assert.Equal(t, "hello.txt", file.Name)
		assert.Equal(t, "text/plain", file.MimeType)
		assert.Equal(t, int64(5), file.SizeBytes)
		assert.Equal(t, helloDigest, file.ContentHash)
		assert.Equal(t, 1, file.ReferenceCount)
		require.NotNil(t, file.FolderID)

		keys, err := store.ListKeys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{file.ObjectKey()}, keys)
	})

	t.Run("DuplicateContentIncrementsReferences", func(t *testing.T) {
		svc, store := setupTestService(t)

		first := uploadString(t, svc, "a.txt", "hello")
		second := uploadString(t, svc, "b.txt", "hello")

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 2, second.ReferenceCount)

		// The duplicate's candidate blob must be discarded
		keys, err := store.ListKeys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{first.ObjectKey()}, keys)
	})

	t.Run("DistinctContentGetsDistinctRecords", func(t *testing.T) {
		svc, store := setupTestService(t)

		first := uploadString(t, svc, "a.txt", "hello")
		second := uploadString(t, svc, "b.txt", "world")

		assert.NotEqual(t, first.ID, second.ID)
		assert.NotEqual(t, first.ContentHash, second.ContentHash)

		keys, err := store.ListKeys(ctx)
		require.NoError(t, err)
		assert.Len(t, keys, 2)
	})

	t.Run("RepeatedUploadsAreStable", func(t *testing.T) {
		svc, store := setupTestService(t)

		var last *simplestorage.StorageFile
		for i := 0; i < 5; i++ {
			last = uploadString(t, svc, fmt.Sprintf("copy-%d.txt", i), "same bytes")
		}
		assert.Equal(t, 5, last.ReferenceCount)

		keys, err := store.ListKeys(ctx)
		require.NoError(t, err)
		assert.Len(t, keys, 1)
	})

	t.Run("MissingReaderIsRejected", func(t *testing.T) {
		svc, _ := setupTestService(t)

		_, err := svc.UploadFile(ctx, simplestorage.UploadFileRequest{FileName: "x.txt"})
		assert.ErrorIs(t, err, simplestorage.ErrInvalidRequest)
	})

	t.Run("MissingFileNameIsRejected", func(t *testing.T) {
		svc, _ := setupTestService(t)

		_, err := svc.UploadFile(ctx, simplestorage.UploadFileRequest{
			Reader: strings.NewReader("data"),
		})
		assert.ErrorIs(t, err, simplestorage.ErrInvalidRequest)
	})

	t.Run("UnknownFolderWritesNothing", func(t *testing.T) {
		svc, store := setupTestService(t)

		missing := uuid.New()
		_, err := svc.UploadFile(ctx, simplestorage.UploadFileRequest{
			Reader:   strings.NewReader("data"),
			FileName: "x.txt",
			FolderID: &missing,
		})
		assert.ErrorIs(t, err, simplestorage.ErrFolderNotFound)

		keys, lerr := store.ListKeys(ctx)
		require.NoError(t, lerr)
		assert.Empty(t, keys)
	})
}

func TestConcurrentDuplicateUploads(t *testing.T) {
	svc, store := setupTestService(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*simplestorage.StorageFile, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.UploadFile(ctx, simplestorage.UploadFileRequest{
				Reader:   strings.NewReader("raced bytes"),
				FileName: fmt.Sprintf("race-%d.txt", i),
				MimeType: "text/plain",
			})
		}(i)
	}
	wg.Wait()

	id := uuid.Nil
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		if id == uuid.Nil {
			id = results[i].ID
		}
		assert.Equal(t, id, results[i].ID)
	}

	file, err := svc.GetFile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, workers, file.ReferenceCount)

	// Losers delete their candidate blobs, so exactly one object survives
	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{file.ObjectKey()}, keys)
}

func TestUpdateFile(t *testing.T) {
	ctx := context.Background()

	t.Run("RenameAndMove", func(t *testing.T) {
		svc, _ := setupTestService(t)

		file := uploadString(t, svc, "old.txt", "content")
		folder, err := svc.CreateFolder(ctx, simplestorage.CreateFolderRequest{Name: "archive"})
		require.NoError(t, err)

		name := "new.txt"
		updated, err := svc.UpdateFile(ctx, simplestorage.UpdateFileRequest{
			ID:       file.ID,
			Name:     &name,
			FolderID: &folder.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, "new.txt", updated.Name)
		require.NotNil(t, updated.FolderID)
		assert.Equal(t, folder.ID, *updated.FolderID)

		// Content identity is untouched
		assert.Equal(t, file.ContentHash, updated.ContentHash)

		summary, err := svc.ResolveFolder(ctx, simplestorage.ResolveFolderRequest{FolderID: &folder.ID})
		require.NoError(t, err)
		require.Len(t, summary.Files, 1)
		assert.Equal(t, "new.txt", summary.Files[0].Name)
	})

	t.Run("EmptyNameIsRejected", func(t *testing.T) {
		svc, _ := setupTestService(t)

		file := uploadString(t, svc, "keep.txt", "content")
		empty := ""
		_, err := svc.UpdateFile(ctx, simplestorage.UpdateFileRequest{ID: file.ID, Name: &empty})
		assert.ErrorIs(t, err, simplestorage.ErrInvalidRequest)
	})

	t.Run("UnknownFile", func(t *testing.T) {
		svc, _ := setupTestService(t)

		_, err := svc.UpdateFile(ctx, simplestorage.UpdateFileRequest{ID: uuid.New()})
		assert.ErrorIs(t, err, simplestorage.ErrFileNotFound)
	})
}

func TestDownloadFile(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	uploaded := uploadString(t, svc, "hello.txt", "hello")

	reader, file, err := svc.DownloadFile(ctx, uploaded.ID)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, uploaded.ID, file.ID)

	var buf bytes.Buffer
	_, err = io.Copy(&buf, reader)
	require.NoError(t, err)
	assert.Equal(t, "hello", buf.String())

	t.Run("UnknownFile", func(t *testing.T) {
		_, _, err := svc.DownloadFile(ctx, uuid.New())
		assert.ErrorIs(t, err, simplestorage.ErrFileNotFound)
	})
}

func TestUploadFiles(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	reqs := []simplestorage.UploadFileRequest{
		{Reader: strings.NewReader("one"), FileName: "one.txt"},
		{Reader: strings.NewReader("two"), FileName: "two.txt"},
		{Reader: strings.NewReader("three"), FileName: "three.txt"},
	}

	files, err := svc.UploadFiles(ctx, reqs)
	require.NoError(t, err)
	require.Len(t, files, 3)

	// Results stay aligned with the request slice
	assert.Equal(t, "one.txt", files[0].Name)
	assert.Equal(t, "two.txt", files[1].Name)
	assert.Equal(t, "three.txt", files[2].Name)
}

func TestFolderOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("RootIsCreatedLazily", func(t *testing.T) {
		svc, _ := setupTestService(t)

		summary, err := svc.ResolveFolder(ctx, simplestorage.ResolveFolderRequest{})
		require.NoError(t, err)
		assert.True(t, summary.Folder.IsRoot())
		assert.Equal(t, simplestorage.RootFolderName, summary.Folder.Name)
		assert.Empty(t, summary.Files)
		assert.Empty(t, summary.Folders)
	})

	t.Run("RootIsSingleton", func(t *testing.T) {
		svc, _ := setupTestService(t)

		first, err := svc.ResolveFolder(ctx, simplestorage.ResolveFolderRequest{})
		require.NoError(t, err)
		second, err := svc.ResolveFolder(ctx, simplestorage.ResolveFolderRequest{})
		require.NoError(t, err)
		assert.Equal(t, first.Folder.ID, second.Folder.ID)
	})

	t.Run("CreateAndResolve", func(t *testing.T) {
		svc, _ := setupTestService(t)

		folder, err := svc.CreateFolder(ctx, simplestorage.CreateFolderRequest{Name: "docs"})
		require.NoError(t, err)
		require.NotNil(t, folder.ParentID)

		file, err := svc.UploadFile(ctx, simplestorage.UploadFileRequest{
			Reader:   strings.NewReader("report"),
			FileName: "report.txt",
			FolderID: &folder.ID,
		})
		require.NoError(t, err)

		summary, err := svc.ResolveFolder(ctx, simplestorage.ResolveFolderRequest{FolderID: &folder.ID})
		require.NoError(t, err)
		require.Len(t, summary.Files, 1)
		assert.Equal(t, file.ID, summary.Files[0].ID)

		rootSummary, err := svc.ResolveFolder(ctx, simplestorage.ResolveFolderRequest{})
		require.NoError(t, err)
		require.Len(t, rootSummary.Folders, 1)
		assert.Equal(t, folder.ID, rootSummary.Folders[0].ID)
		assert.Empty(t, rootSummary.Files)
	})

	t.Run("OnlyFilesSkipsChildFolders", func(t *testing.T) {
		svc, _ := setupTestService(t)

		_, err := svc.CreateFolder(ctx, simplestorage.CreateFolderRequest{Name: "docs"})
		require.NoError(t, err)

		summary, err := svc.ResolveFolder(ctx, simplestorage.ResolveFolderRequest{OnlyFiles: true})
		require.NoError(t, err)
		assert.Empty(t, summary.Folders)
	})

	t.Run("EmptyNameIsRejected", func(t *testing.T) {
		svc, _ := setupTestService(t)

		_, err := svc.CreateFolder(ctx, simplestorage.CreateFolderRequest{})
		assert.ErrorIs(t, err, simplestorage.ErrInvalidRequest)
	})

	t.Run("UnknownParentIsRejected", func(t *testing.T) {
		svc, _ := setupTestService(t)

		missing := uuid.New()
		_, err := svc.CreateFolder(ctx, simplestorage.CreateFolderRequest{
			Name:     "docs",
			ParentID: &missing,
		})
		assert.ErrorIs(t, err, simplestorage.ErrFolderNotFound)
	})
}

func TestConcurrentRootResolution(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	roots := make([]uuid.UUID, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			summary, err := svc.ResolveFolder(ctx, simplestorage.ResolveFolderRequest{})
			if err != nil {
				errs[i] = err
				return
			}
			roots[i] = summary.Folder.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, roots[0], roots[i])
	}
}

func TestDeleteNodes(t *testing.T) {
	ctx := context.Background()

	t.Run("LastReferenceRemovesRecordButNotBlob", func(t *testing.T) {
		svc, store := setupTestService(t)

		file := uploadString(t, svc, "doomed.txt", "doomed")

		err := svc.DeleteNodes(ctx, simplestorage.DeleteNodesRequest{IDs: []uuid.UUID{file.ID}})
		require.NoError(t, err)

		_, err = svc.GetFile(ctx, file.ID)
		assert.ErrorIs(t, err, simplestorage.ErrFileNotFound)

		// Blob removal is the purge sweep's job
		keys, err := store.ListKeys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{file.ObjectKey()}, keys)
	})

	t.Run("SharedContentSurvivesOneDelete", func(t *testing.T) {
		svc, _ := setupTestService(t)

		uploadString(t, svc, "a.txt", "shared")
		file := uploadString(t, svc, "b.txt", "shared")
		require.Equal(t, 2, file.ReferenceCount)

		err := svc.DeleteNodes(ctx, simplestorage.DeleteNodesRequest{IDs: []uuid.UUID{file.ID}})
		require.NoError(t, err)

		remaining, err := svc.GetFile(ctx, file.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, remaining.ReferenceCount)
	})

	t.Run("FolderCascade", func(t *testing.T) {
		svc, _ := setupTestService(t)

		parent, err := svc.CreateFolder(ctx, simplestorage.CreateFolderRequest{Name: "parent"})
		require.NoError(t, err)
		child, err := svc.CreateFolder(ctx, simplestorage.CreateFolderRequest{Name: "child", ParentID: &parent.ID})
		require.NoError(t, err)

		file, err := svc.UploadFile(ctx, simplestorage.UploadFileRequest{
			Reader:   strings.NewReader("nested"),
			FileName: "nested.txt",
			FolderID: &child.ID,
		})
		require.NoError(t, err)

		err = svc.DeleteNodes(ctx, simplestorage.DeleteNodesRequest{IDs: []uuid.UUID{parent.ID}})
		require.NoError(t, err)

		_, err = svc.GetFile(ctx, file.ID)
		assert.ErrorIs(t, err, simplestorage.ErrFileNotFound)

		summary, err := svc.ResolveFolder(ctx, simplestorage.ResolveFolderRequest{})
		require.NoError(t, err)
		assert.Empty(t, summary.Folders)
	})

	t.Run("RootCannotBeDeleted", func(t *testing.T) {
		svc, _ := setupTestService(t)

		summary, err := svc.ResolveFolder(ctx, simplestorage.ResolveFolderRequest{})
		require.NoError(t, err)

		err = svc.DeleteNodes(ctx, simplestorage.DeleteNodesRequest{IDs: []uuid.UUID{summary.Folder.ID}})
		assert.ErrorIs(t, err, simplestorage.ErrInvalidRequest)
	})

	t.Run("OnlyFilesRejectsFolderIDs", func(t *testing.T) {
		svc, _ := setupTestService(t)

		folder, err := svc.CreateFolder(ctx, simplestorage.CreateFolderRequest{Name: "docs"})
		require.NoError(t, err)

		err = svc.DeleteNodes(ctx, simplestorage.DeleteNodesRequest{
			IDs:       []uuid.UUID{folder.ID},
			OnlyFiles: true,
		})
		assert.ErrorIs(t, err, simplestorage.ErrFileNotFound)
	})

	t.Run("OnlyFoldersSkipsFiles", func(t *testing.T) {
		svc, _ := setupTestService(t)

		file := uploadString(t, svc, "keep.txt", "keep")

		err := svc.DeleteNodes(ctx, simplestorage.DeleteNodesRequest{
			IDs:         []uuid.UUID{file.ID},
			OnlyFolders: true,
		})
		assert.ErrorIs(t, err, simplestorage.ErrFolderNotFound)

		_, err = svc.GetFile(ctx, file.ID)
		assert.NoError(t, err)
	})
}

func TestPurgeOrphans(t *testing.T) {
	ctx := context.Background()

	t.Run("RemovesPlantedOrphan", func(t *testing.T) {
		svc, store := setupTestService(t)

		live := uploadString(t, svc, "live.txt", "live")

		err := store.Put(ctx, uuid.New().String(), strings.NewReader("stranded"), simplestorage.PutParams{})
		require.NoError(t, err)

		removed, err := svc.PurgeOrphans(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		keys, err := store.ListKeys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{live.ObjectKey()}, keys)
	})

	t.Run("ReclaimsDeletedBlob", func(t *testing.T) {
		svc, store := setupTestService(t)

		file := uploadString(t, svc, "doomed.txt", "doomed")
		err := svc.DeleteNodes(ctx, simplestorage.DeleteNodesRequest{IDs: []uuid.UUID{file.ID}})
		require.NoError(t, err)

		removed, err := svc.PurgeOrphans(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		keys, err := store.ListKeys(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("CleanStateRemovesNothing", func(t *testing.T) {
		svc, _ := setupTestService(t)

		uploadString(t, svc, "live.txt", "live")

		removed, err := svc.PurgeOrphans(ctx)
		require.NoError(t, err)
		assert.Zero(t, removed)
	})
}

type denyAuthorizer struct {
	denied simplestorage.Permission
}

func (a denyAuthorizer) Authorize(ctx context.Context, actor string, permission simplestorage.Permission) error {
	if permission == a.denied {
		return errors.New("denied")
	}
	return nil
}

func TestAuthorization(t *testing.T) {
	ctx := context.Background()

	svc, err := simplestorage.New(
		simplestorage.WithRepository(memory.New()),
		simplestorage.WithBlobStore("memory", memorystorage.New()),
		simplestorage.WithAuthorizer(denyAuthorizer{denied: simplestorage.PermissionFileUpload}),
	)
	require.NoError(t, err)

	_, err = svc.UploadFile(ctx, simplestorage.UploadFileRequest{
		Reader:   strings.NewReader("secret"),
		FileName: "secret.txt",
	})
	assert.ErrorIs(t, err, simplestorage.ErrPermissionDenied)

	// Other permissions are unaffected
	_, err = svc.ResolveFolder(ctx, simplestorage.ResolveFolderRequest{})
	assert.NoError(t, err)
}

func TestBackendRegistry(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.GetBackend("memory")
	assert.NoError(t, err)

	_, err = svc.GetBackend("s3")
	assert.ErrorIs(t, err, simplestorage.ErrStorageBackendNotFound)

	svc.RegisterBackend("extra", memorystorage.New())
	_, err = svc.GetBackend("extra")
	assert.NoError(t, err)
}
