package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tendant/simple-storage/pkg/simplestorage"
)

// Config options for the MinIO backend
type Config struct {
	Endpoint        string // host:port of the MinIO server
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	KeyPrefix       string // Optional key prefix isolating this service's objects

	CreateBucketIfNotExist bool
}

// Backend is a MinIO-native implementation of the simplestorage.BlobStore
// interface, for deployments that talk to MinIO directly rather than through
// the S3 compatibility layer.
type Backend struct {
	client *minio.Client
	bucket string
	prefix string
}

// New creates a new MinIO storage backend
func New(config Config) (simplestorage.BlobStore, error) {
	if config.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	backend := &Backend{
		client: client,
		bucket: config.Bucket,
		prefix: config.KeyPrefix,
	}

	if config.CreateBucketIfNotExist {
		ctx := context.Background()
		exists, err := client.BucketExists(ctx, config.Bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to check bucket existence: %w", err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("failed to create bucket: %w", err)
			}
		}
	}

	return backend, nil
}

func (b *Backend) fullKey(objectKey string) string {
	if b.prefix == "" {
		return objectKey
	}
	return strings.TrimSuffix(b.prefix, "/") + "/" + objectKey
}

// Put uploads the object. MinIO PUTs are atomic per object.
func (b *Backend) Put(ctx context.Context, objectKey string, reader io.Reader, params simplestorage.PutParams) error {
	size := params.SizeBytes
	if size <= 0 {
		// Unknown length; minio streams with multipart in this case
		size = -1
	}

	opts := minio.PutObjectOptions{
		ContentType: params.ContentType,
	}
	if params.FileName != "" {
		opts.ContentDisposition = fmt.Sprintf("attachment; filename=%q", params.FileName)
	}

	_, err := b.client.PutObject(ctx, b.bucket, b.fullKey(objectKey), reader, size, opts)
	if err != nil {
		return fmt.Errorf("failed to upload to MinIO: %w", err)
	}

	return nil
}

// Download returns a reader over the object's bytes
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, b.fullKey(objectKey), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	// GetObject is lazy; a missing key only surfaces on first read
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, errors.New("object not found")
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	return obj, nil
}

// Delete removes the object; RemoveObject succeeds for missing keys
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	err := b.client.RemoveObject(ctx, b.bucket, b.fullKey(objectKey), minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete from MinIO: %w", err)
	}
	return nil
}

// GetObjectMeta retrieves metadata for an object in MinIO
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*simplestorage.ObjectMeta, error) {
	info, err := b.client.StatObject(ctx, b.bucket, b.fullKey(objectKey), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, errors.New("object not found")
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	metadata := make(map[string]string)
	for k := range info.Metadata {
		metadata[k] = info.Metadata.Get(k)
	}
	metadata["content_type"] = contentType

	meta := &simplestorage.ObjectMeta{
		Key:         objectKey,
		Size:        info.Size,
		ContentType: contentType,
		UpdatedAt:   info.LastModified,
		ETag:        strings.Trim(info.ETag, "\""),
		Metadata:    metadata,
	}

	return meta, nil
}

// ListKeys enumerates every object key under the configured prefix
func (b *Backend) ListKeys(ctx context.Context) ([]string, error) {
	opts := minio.ListObjectsOptions{
		Recursive: true,
	}
	if b.prefix != "" {
		opts.Prefix = strings.TrimSuffix(b.prefix, "/") + "/"
	}

	var keys []string
	for obj := range b.client.ListObjects(ctx, b.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		key := obj.Key
		if b.prefix != "" {
			key = strings.TrimPrefix(key, strings.TrimSuffix(b.prefix, "/")+"/")
		}
		keys = append(keys, key)
	}

	return keys, nil
}
