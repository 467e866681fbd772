// Package postgres provides a PostgreSQL implementation of the
// simplestorage.Repository interface using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-storage/pkg/simplestorage"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simplestorage.Repository using PostgreSQL.
//
// The dedup and root-folder invariants live in the schema: a unique index on
// storage_file.content_hash and a partial unique index on the single
// nil-parent row of storage_folder. Unique violations surface as
// ErrFileExists and ErrFolderExists so the service can resolve races.
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) simplestorage.Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) simplestorage.Repository {
	return &Repository{db: pool}
}

// handlePostgresError maps driver errors onto the package error taxonomy
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "content_hash") {
				return simplestorage.ErrFileExists
			}
			if strings.Contains(pgErr.ConstraintName, "root") {
				return simplestorage.ErrFolderExists
			}
			return fmt.Errorf("duplicate entry in %s: %s", operation, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found in %s", operation)
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// File operations

func (r *Repository) CreateFile(ctx context.Context, file *simplestorage.StorageFile) error {
	query := `
		INSERT INTO storage_file (
			id, name, mime_type, size_bytes, content_hash, reference_count,
			description, folder_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		file.ID, file.Name, file.MimeType, file.SizeBytes, file.ContentHash,
		file.ReferenceCount, file.Description, file.FolderID,
		file.CreatedAt, file.UpdatedAt)

	if err != nil {
		return r.handlePostgresError("create file", err)
	}

	return nil
}

func (r *Repository) GetFile(ctx context.Context, id uuid.UUID) (*simplestorage.StorageFile, error) {
	query := `
        SELECT id, name, mime_type, size_bytes, content_hash, reference_count,
               description, folder_id, created_at, updated_at
        FROM storage_file WHERE id = $1`

	return r.scanFile(r.db.QueryRow(ctx, query, id))
}

func (r *Repository) GetFileByHash(ctx context.Context, contentHash string) (*simplestorage.StorageFile, error) {
	query := `
        SELECT id, name, mime_type, size_bytes, content_hash, reference_count,
               description, folder_id, created_at, updated_at
        FROM storage_file WHERE content_hash = $1`

	return r.scanFile(r.db.QueryRow(ctx, query, contentHash))
}

func (r *Repository) UpdateFile(ctx context.Context, file *simplestorage.StorageFile) error {
	query := `
		UPDATE storage_file SET
			name = $2, mime_type = $3, size_bytes = $4, description = $5,
			folder_id = $6, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		file.ID, file.Name, file.MimeType, file.SizeBytes,
		file.Description, file.FolderID)
	if err != nil {
		return r.handlePostgresError("update file", err)
	}
	if tag.RowsAffected() == 0 {
		return simplestorage.ErrFileNotFound
	}

	return nil
}

func (r *Repository) DeleteFile(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM storage_file WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete file", err)
	}
	if tag.RowsAffected() == 0 {
		return simplestorage.ErrFileNotFound
	}

	return nil
}

func (r *Repository) ListFilesByFolder(ctx context.Context, folderID uuid.UUID) ([]*simplestorage.StorageFile, error) {
	query := `
        SELECT id, name, mime_type, size_bytes, content_hash, reference_count,
               description, folder_id, created_at, updated_at
        FROM storage_file WHERE folder_id = $1
        ORDER BY name`

	rows, err := r.db.Query(ctx, query, folderID)
	if err != nil {
		return nil, r.handlePostgresError("list files", err)
	}
	defer rows.Close()

	var files []*simplestorage.StorageFile
	for rows.Next() {
		file, err := r.scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	return files, rows.Err()
}

// IncrementFileRefs bumps the reference count in a single UPDATE, so
// concurrent duplicate uploads never lose an increment.
func (r *Repository) IncrementFileRefs(ctx context.Context, id uuid.UUID) (*simplestorage.StorageFile, error) {
	query := `
        UPDATE storage_file
        SET reference_count = reference_count + 1, updated_at = NOW()
        WHERE id = $1
        RETURNING id, name, mime_type, size_bytes, content_hash, reference_count,
                  description, folder_id, created_at, updated_at`

	return r.scanFile(r.db.QueryRow(ctx, query, id))
}

// DecrementFileRefs removes one reference, clamped at zero.
func (r *Repository) DecrementFileRefs(ctx context.Context, id uuid.UUID) (*simplestorage.StorageFile, error) {
	query := `
        UPDATE storage_file
        SET reference_count = GREATEST(reference_count - 1, 0), updated_at = NOW()
        WHERE id = $1
        RETURNING id, name, mime_type, size_bytes, content_hash, reference_count,
                  description, folder_id, created_at, updated_at`

	return r.scanFile(r.db.QueryRow(ctx, query, id))
}

func (r *Repository) ListFileKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM storage_file`)
	if err != nil {
		return nil, r.handlePostgresError("list file keys", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, r.handlePostgresError("list file keys", err)
		}
		keys = append(keys, id.String())
	}

	return keys, rows.Err()
}

func (r *Repository) scanFile(row pgx.Row) (*simplestorage.StorageFile, error) {
	var file simplestorage.StorageFile
	err := row.Scan(
		&file.ID, &file.Name, &file.MimeType, &file.SizeBytes,
		&file.ContentHash, &file.ReferenceCount, &file.Description,
		&file.FolderID, &file.CreatedAt, &file.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplestorage.ErrFileNotFound
		}
		return nil, r.handlePostgresError("scan file", err)
	}

	return &file, nil
}

// Folder operations

func (r *Repository) CreateFolder(ctx context.Context, folder *simplestorage.StorageFolder) error {
	query := `
		INSERT INTO storage_folder (id, name, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		folder.ID, folder.Name, folder.ParentID, folder.CreatedAt, folder.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create folder", err)
	}

	return nil
}

func (r *Repository) GetFolder(ctx context.Context, id uuid.UUID) (*simplestorage.StorageFolder, error) {
	query := `
        SELECT id, name, parent_id, created_at, updated_at
        FROM storage_folder WHERE id = $1`

	return r.scanFolder(r.db.QueryRow(ctx, query, id))
}

func (r *Repository) GetRootFolder(ctx context.Context) (*simplestorage.StorageFolder, error) {
	query := `
        SELECT id, name, parent_id, created_at, updated_at
        FROM storage_folder WHERE parent_id IS NULL`

	return r.scanFolder(r.db.QueryRow(ctx, query))
}

func (r *Repository) DeleteFolder(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM storage_folder WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete folder", err)
	}
	if tag.RowsAffected() == 0 {
		return simplestorage.ErrFolderNotFound
	}

	return nil
}

func (r *Repository) ListChildFolders(ctx context.Context, parentID uuid.UUID) ([]*simplestorage.StorageFolder, error) {
	query := `
        SELECT id, name, parent_id, created_at, updated_at
        FROM storage_folder WHERE parent_id = $1
        ORDER BY name`

	rows, err := r.db.Query(ctx, query, parentID)
	if err != nil {
		return nil, r.handlePostgresError("list folders", err)
	}
	defer rows.Close()

	var folders []*simplestorage.StorageFolder
	for rows.Next() {
		folder, err := r.scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}

	return folders, rows.Err()
}

func (r *Repository) scanFolder(row pgx.Row) (*simplestorage.StorageFolder, error) {
	var folder simplestorage.StorageFolder
	err := row.Scan(
		&folder.ID, &folder.Name, &folder.ParentID,
		&folder.CreatedAt, &folder.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, simplestorage.ErrFolderNotFound
		}
		return nil, r.handlePostgresError("scan folder", err)
	}

	return &folder, nil
}
