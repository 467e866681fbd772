package simplestorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// service implements the Service interface
type service struct {
	repository     Repository
	blobStores     map[string]BlobStore
	defaultBackend string
	authorizer     Authorizer
	eventSink      EventSink
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore adds a blob storage backend
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		if s.blobStores == nil {
			s.blobStores = make(map[string]BlobStore)
		}
		s.blobStores[name] = store
	}
}

// WithDefaultBackend selects the backend used by upload, download and purge
func WithDefaultBackend(name string) Option {
	return func(s *service) {
		s.defaultBackend = name
	}
}

// WithAuthorizer sets the permission checker for the service
func WithAuthorizer(authorizer Authorizer) Option {
	return func(s *service) {
		s.authorizer = authorizer
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		blobStores: make(map[string]BlobStore),
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if len(s.blobStores) == 0 {
		return nil, fmt.Errorf("at least one blob store is required")
	}
	if s.defaultBackend == "" {
		if len(s.blobStores) > 1 {
			return nil, fmt.Errorf("default backend is required when multiple blob stores are configured")
		}
		for name := range s.blobStores {
			s.defaultBackend = name
		}
	}
	if _, ok := s.blobStores[s.defaultBackend]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrStorageBackendNotFound, s.defaultBackend)
	}
	if s.authorizer == nil {
		s.authorizer = NewAllowAllAuthorizer()
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}

	return s, nil
}

func (s *service) authorize(ctx context.Context, permission Permission) error {
	if err := s.authorizer.Authorize(ctx, ActorFromContext(ctx), permission); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPermissionDenied, permission, err)
	}
	return nil
}

func (s *service) backend() BlobStore {
	return s.blobStores[s.defaultBackend]
}

// File operations

// UploadFile streams the file into the default backend under a fresh
// candidate key while hashing in one pass, then reconciles the digest
// against existing metadata: a known hash becomes an extra reference to the
// existing record, a novel hash commits new metadata under the candidate id.
func (s *service) UploadFile(ctx context.Context, req UploadFileRequest) (*StorageFile, error) {
	if err := s.authorize(ctx, PermissionFileUpload); err != nil {
		return nil, err
	}
	if req.Reader == nil {
		return nil, fmt.Errorf("%w: file content is required", ErrInvalidRequest)
	}
	if req.FileName == "" {
		return nil, fmt.Errorf("%w: file name is required", ErrInvalidRequest)
	}

	// Validate the parent before any byte is written so a bad folder id
	// never leaves a throwaway blob behind.
	folder, err := s.resolveFolder(ctx, req.FolderID)
	if err != nil {
		return nil, err
	}

	candidateID := uuid.New()
	key := candidateID.String()
	hashed := NewHashReader(req.Reader)

	// The write happens before the hash is known: hashing requires a full
	// pass over the data, and uploading while hashing keeps it single-pass.
	if err := s.backend().Put(ctx, key, hashed, PutParams{
		ContentType: req.MimeType,
		SizeBytes:   req.SizeBytes,
		FileName:    req.FileName,
	}); err != nil {
		return nil, &StorageError{
			Backend: s.defaultBackend,
			Key:     key,
			Op:      "put",
			Err:     err,
		}
	}

	digest := hashed.Digest()

	existing, err := s.repository.GetFileByHash(ctx, digest)
	if err == nil {
		// Duplicate content: discard the just-written blob and reference
		// the canonical record instead.
		return s.referenceExisting(ctx, key, existing.ID)
	}
	if !errors.Is(err, ErrFileNotFound) {
		return nil, &FileError{FileID: candidateID, Op: "upload", Err: err}
	}

	now := time.Now().UTC()
	folderID := folder.ID
	file := &StorageFile{
		ID:             candidateID,
		Name:           req.FileName,
		MimeType:       req.MimeType,
		SizeBytes:      hashed.Size(),
		ContentHash:    digest,
		ReferenceCount: 1,
		Description:    req.Description,
		FolderID:       &folderID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repository.CreateFile(ctx, file); err != nil {
		if errors.Is(err, ErrFileExists) {
			// Lost the duplicate-hash race: a concurrent upload of the
			// same content committed first. Fall back to referencing the
			// winner; a failure here propagates rather than retrying.
			winner, werr := s.repository.GetFileByHash(ctx, digest)
			if werr != nil {
				return nil, &FileError{FileID: candidateID, Op: "upload", Err: werr}
			}
			return s.referenceExisting(ctx, key, winner.ID)
		}
		// The written blob stays behind as an orphan for the purge sweep.
		return nil, &FileError{FileID: candidateID, Op: "upload", Err: err}
	}

	if err := s.eventSink.FileUploaded(ctx, file); err != nil {
		// Event failures never fail the operation
	}

	return file, nil
}

// referenceExisting deletes the redundant candidate blob and atomically
// increments the reference count of the canonical record.
func (s *service) referenceExisting(ctx context.Context, candidateKey string, id uuid.UUID) (*StorageFile, error) {
	if err := s.backend().Delete(ctx, candidateKey); err != nil {
		return nil, &StorageError{
			Backend: s.defaultBackend,
			Key:     candidateKey,
			Op:      "delete",
			Err:     err,
		}
	}

	file, err := s.repository.IncrementFileRefs(ctx, id)
	if err != nil {
		return nil, &FileError{FileID: id, Op: "increment_refs", Err: err}
	}

	if err := s.eventSink.FileDeduplicated(ctx, file); err != nil {
		// Event failures never fail the operation
	}

	return file, nil
}

// UploadFiles uploads a batch concurrently, preserving input order in the
// returned slice. The first failure cancels the remaining uploads.
func (s *service) UploadFiles(ctx context.Context, reqs []UploadFileRequest) ([]*StorageFile, error) {
	files := make([]*StorageFile, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			file, err := s.UploadFile(gctx, req)
			if err != nil {
				return err
			}
			files[i] = file
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return files, nil
}

func (s *service) GetFile(ctx context.Context, id uuid.UUID) (*StorageFile, error) {
	return s.repository.GetFile(ctx, id)
}

// UpdateFile renames, moves or re-describes a file. The blob and its
// content hash are immutable; only placement metadata changes.
func (s *service) UpdateFile(ctx context.Context, req UpdateFileRequest) (*StorageFile, error) {
	if err := s.authorize(ctx, PermissionFileUpload); err != nil {
		return nil, err
	}

	file, err := s.repository.GetFile(ctx, req.ID)
	if err != nil {
		return nil, &FileError{FileID: req.ID, Op: "update", Err: err}
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, fmt.Errorf("%w: file name cannot be empty", ErrInvalidRequest)
		}
		file.Name = *req.Name
	}
	if req.Description != nil {
		file.Description = *req.Description
	}
	if req.FolderID != nil {
		folder, err := s.resolveFolder(ctx, req.FolderID)
		if err != nil {
			return nil, err
		}
		folderID := folder.ID
		file.FolderID = &folderID
	}
	file.UpdatedAt = time.Now().UTC()

	if err := s.repository.UpdateFile(ctx, file); err != nil {
		return nil, &FileError{FileID: req.ID, Op: "update", Err: err}
	}

	return file, nil
}

func (s *service) DownloadFile(ctx context.Context, id uuid.UUID) (io.ReadCloser, *StorageFile, error) {
	if err := s.authorize(ctx, PermissionFileDownload); err != nil {
		return nil, nil, err
	}

	file, err := s.repository.GetFile(ctx, id)
	if err != nil {
		return nil, nil, &FileError{FileID: id, Op: "download", Err: err}
	}

	reader, err := s.backend().Download(ctx, file.ObjectKey())
	if err != nil {
		return nil, nil, &StorageError{
			Backend: s.defaultBackend,
			Key:     file.ObjectKey(),
			Op:      "download",
			Err:     err,
		}
	}

	return reader, file, nil
}

// Folder operations

// resolveFolder looks up the folder by id, or resolves the singleton root
// when id is nil, creating it lazily. Root creation is idempotent: losing
// the creation race is converted into a re-fetch of the winning row.
func (s *service) resolveFolder(ctx context.Context, folderID *uuid.UUID) (*StorageFolder, error) {
	if folderID != nil {
		folder, err := s.repository.GetFolder(ctx, *folderID)
		if err != nil {
			return nil, &FolderError{FolderID: *folderID, Op: "resolve", Err: err}
		}
		return folder, nil
	}

	root, err := s.repository.GetRootFolder(ctx)
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, ErrFolderNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	root = &StorageFolder{
		ID:        uuid.New(),
		Name:      RootFolderName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repository.CreateFolder(ctx, root); err != nil {
		if errors.Is(err, ErrFolderExists) {
			// Lost the root-creation race; the winner's row is authoritative.
			return s.repository.GetRootFolder(ctx)
		}
		return nil, &FolderError{FolderID: root.ID, Op: "create_root", Err: err}
	}

	if err := s.eventSink.FolderCreated(ctx, root); err != nil {
		// Event failures never fail the operation
	}

	return root, nil
}

func (s *service) ResolveFolder(ctx context.Context, req ResolveFolderRequest) (*StorageFolderSummary, error) {
	if err := s.authorize(ctx, PermissionFolderRead); err != nil {
		return nil, err
	}

	folder, err := s.resolveFolder(ctx, req.FolderID)
	if err != nil {
		return nil, err
	}

	files, err := s.repository.ListFilesByFolder(ctx, folder.ID)
	if err != nil {
		return nil, &FolderError{FolderID: folder.ID, Op: "list_files", Err: err}
	}

	summary := &StorageFolderSummary{
		Folder: folder,
		Files:  files,
	}

	if !req.OnlyFiles {
		folders, err := s.repository.ListChildFolders(ctx, folder.ID)
		if err != nil {
			return nil, &FolderError{FolderID: folder.ID, Op: "list_folders", Err: err}
		}
		summary.Folders = folders
	}

	return summary, nil
}

func (s *service) CreateFolder(ctx context.Context, req CreateFolderRequest) (*StorageFolder, error) {
	if err := s.authorize(ctx, PermissionFolderCreate); err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, fmt.Errorf("%w: folder name is required", ErrInvalidRequest)
	}

	parent, err := s.resolveFolder(ctx, req.ParentID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	parentID := parent.ID
	folder := &StorageFolder{
		ID:        uuid.New(),
		Name:      req.Name,
		ParentID:  &parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repository.CreateFolder(ctx, folder); err != nil {
		return nil, &FolderError{FolderID: folder.ID, Op: "create", Err: err}
	}

	if err := s.eventSink.FolderCreated(ctx, folder); err != nil {
		// Event failures never fail the operation
	}

	return folder, nil
}

// Deletion and reconciliation

// DeleteNodes removes the requested files and folders. A file delete
// releases one reference; the metadata row goes away only once its count
// reaches zero, and the blob itself always waits for the purge sweep.
// Folder deletes cascade through the subtree.
func (s *service) DeleteNodes(ctx context.Context, req DeleteNodesRequest) error {
	if err := s.authorize(ctx, PermissionDelete); err != nil {
		return err
	}

	for _, id := range req.IDs {
		if !req.OnlyFolders {
			file, err := s.repository.GetFile(ctx, id)
			if err == nil {
				if err := s.releaseFile(ctx, file); err != nil {
					return err
				}
				continue
			}
			if !errors.Is(err, ErrFileNotFound) {
				return &FileError{FileID: id, Op: "delete", Err: err}
			}
			if req.OnlyFiles {
				return &FileError{FileID: id, Op: "delete", Err: ErrFileNotFound}
			}
		}

		folder, err := s.repository.GetFolder(ctx, id)
		if err != nil {
			return &FolderError{FolderID: id, Op: "delete", Err: err}
		}
		if err := s.deleteFolderTree(ctx, folder); err != nil {
			return err
		}
	}

	if err := s.eventSink.NodesDeleted(ctx, req.IDs); err != nil {
		// Event failures never fail the operation
	}

	return nil
}

// releaseFile removes one reference from the file, dropping the metadata
// row when no references remain. The blob is never deleted here; a
// zero-reference blob becomes an orphan for PurgeOrphans to reclaim.
func (s *service) releaseFile(ctx context.Context, file *StorageFile) error {
	updated, err := s.repository.DecrementFileRefs(ctx, file.ID)
	if err != nil {
		return &FileError{FileID: file.ID, Op: "release", Err: err}
	}

	if updated.ReferenceCount == 0 {
		if err := s.repository.DeleteFile(ctx, file.ID); err != nil {
			return &FileError{FileID: file.ID, Op: "delete", Err: err}
		}
	}

	return nil
}

// deleteFolderTree cascade-deletes a folder: child folders recursively,
// child files through the reference-release path. The root folder itself
// cannot be deleted.
func (s *service) deleteFolderTree(ctx context.Context, folder *StorageFolder) error {
	if folder.IsRoot() {
		return fmt.Errorf("%w: root folder cannot be deleted", ErrInvalidRequest)
	}

	children, err := s.repository.ListChildFolders(ctx, folder.ID)
	if err != nil {
		return &FolderError{FolderID: folder.ID, Op: "list_folders", Err: err}
	}
	for _, child := range children {
		if err := s.deleteFolderTree(ctx, child); err != nil {
			return err
		}
	}

	files, err := s.repository.ListFilesByFolder(ctx, folder.ID)
	if err != nil {
		return &FolderError{FolderID: folder.ID, Op: "list_files", Err: err}
	}
	for _, file := range files {
		if err := s.releaseFile(ctx, file); err != nil {
			return err
		}
	}

	if err := s.repository.DeleteFolder(ctx, folder.ID); err != nil {
		return &FolderError{FolderID: folder.ID, Op: "delete", Err: err}
	}

	return nil
}

// PurgeOrphans reconciles the backend against metadata: every object whose
// key has no live file row is physically removed. Orphans come from aborted
// uploads, lost dedup races and zero-reference deletions.
func (s *service) PurgeOrphans(ctx context.Context) (int, error) {
	if err := s.authorize(ctx, PermissionPurge); err != nil {
		return 0, err
	}

	keys, err := s.backend().ListKeys(ctx)
	if err != nil {
		return 0, &StorageError{Backend: s.defaultBackend, Op: "list_keys", Err: err}
	}

	liveKeys, err := s.repository.ListFileKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list live file keys: %w", err)
	}
	live := make(map[string]struct{}, len(liveKeys))
	for _, key := range liveKeys {
		live[key] = struct{}{}
	}

	removed := 0
	for _, key := range keys {
		if _, ok := live[key]; ok {
			continue
		}
		if err := s.backend().Delete(ctx, key); err != nil {
			return removed, &StorageError{
				Backend: s.defaultBackend,
				Key:     key,
				Op:      "delete",
				Err:     err,
			}
		}
		removed++
	}

	if err := s.eventSink.OrphansPurged(ctx, removed); err != nil {
		// Event failures never fail the operation
	}

	return removed, nil
}

// Storage backend operations

func (s *service) RegisterBackend(name string, backend BlobStore) {
	s.blobStores[name] = backend
}

func (s *service) GetBackend(name string) (BlobStore, error) {
	backend, exists := s.blobStores[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStorageBackendNotFound, name)
	}
	return backend, nil
}
