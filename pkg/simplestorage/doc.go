// Package simplestorage provides a reusable library for deduplicating,
// content-addressed file storage with pluggable repository and blob storage
// backends.
//
// It exposes a single Service interface that orchestrates streaming uploads
// with single-pass hashing, duplicate detection by content hash, folder tree
// resolution, deletion with reference counting, and an orphan-reclaiming
// purge sweep. Implementations of repositories (e.g., memory, Postgres) and
// blob stores (e.g., memory, filesystem, S3, MinIO) are provided under
// subpackages.
//
// Deduplication Model
//
// A StorageFile row represents one unique blob, keyed by the SHA-256 digest
// of its bytes. ReferenceCount tracks how many upload events resolved to that
// digest; uploading identical content never stores a second blob. Deleting a
// file decrements the count, and the blob itself is only reclaimed by
// PurgeOrphans once no metadata row references it.
package simplestorage
