package simplestorage

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
// Useful for production when you don't need event handling or for testing
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// FileUploaded does nothing and returns nil
func (n *NoopEventSink) FileUploaded(ctx context.Context, file *StorageFile) error {
	return nil
}

// FileDeduplicated does nothing and returns nil
func (n *NoopEventSink) FileDeduplicated(ctx context.Context, file *StorageFile) error {
	return nil
}

// FolderCreated does nothing and returns nil
func (n *NoopEventSink) FolderCreated(ctx context.Context, folder *StorageFolder) error {
	return nil
}

// NodesDeleted does nothing and returns nil
func (n *NoopEventSink) NodesDeleted(ctx context.Context, ids []uuid.UUID) error {
	return nil
}

// OrphansPurged does nothing and returns nil
func (n *NoopEventSink) OrphansPurged(ctx context.Context, removed int) error {
	return nil
}

// SlogEventSink is an event sink that logs events but takes no other action
// Useful for development and debugging
type SlogEventSink struct {
	logger *slog.Logger
}

// NewSlogEventSink creates an event sink logging through the given slog logger
func NewSlogEventSink(logger *slog.Logger) EventSink {
	return &SlogEventSink{logger: logger}
}

// FileUploaded logs the upload event
func (l *SlogEventSink) FileUploaded(ctx context.Context, file *StorageFile) error {
	l.logger.InfoContext(ctx, "file uploaded",
		"file_id", file.ID, "name", file.Name, "content_hash", file.ContentHash, "size_bytes", file.SizeBytes)
	return nil
}

// FileDeduplicated logs the dedup event
func (l *SlogEventSink) FileDeduplicated(ctx context.Context, file *StorageFile) error {
	l.logger.InfoContext(ctx, "file deduplicated",
		"file_id", file.ID, "content_hash", file.ContentHash, "reference_count", file.ReferenceCount)
	return nil
}

// FolderCreated logs the folder creation event
func (l *SlogEventSink) FolderCreated(ctx context.Context, folder *StorageFolder) error {
	l.logger.InfoContext(ctx, "folder created", "folder_id", folder.ID, "name", folder.Name)
	return nil
}

// NodesDeleted logs the delete event
func (l *SlogEventSink) NodesDeleted(ctx context.Context, ids []uuid.UUID) error {
	l.logger.InfoContext(ctx, "nodes deleted", "count", len(ids))
	return nil
}

// OrphansPurged logs the purge event
func (l *SlogEventSink) OrphansPurged(ctx context.Context, removed int) error {
	l.logger.InfoContext(ctx, "orphans purged", "removed", removed)
	return nil
}
