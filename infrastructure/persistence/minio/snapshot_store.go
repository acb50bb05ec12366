// Package minio provides an object-storage snapshot store for workspace
// documents.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"contentforge/domain/core/aggregates"
	pkgerrors "contentforge/pkg/errors"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// SnapshotStore persists workspace snapshots as JSON objects in a bucket.
// Each workspace key maps to exactly one object; Save overwrites in place and
// object versioning, when enabled on the bucket, keeps history.
type SnapshotStore struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// Config holds the object storage connection settings
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewSnapshotStore connects to the object store and ensures the bucket exists
func NewSnapshotStore(ctx context.Context, cfg Config, logger *zap.Logger) (*SnapshotStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
		logger.Info("Created snapshot bucket", zap.String("bucket", cfg.Bucket))
	}

	return &SnapshotStore{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

// Load returns the latest snapshot bytes for the key, or a NotFoundError when
// no snapshot has been persisted yet.
func (s *SnapshotStore) Load(ctx context.Context, key aggregates.WorkspaceKey) ([]byte, error) {
	objectKey := key.ObjectKey()

	obj, err := s.client.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get snapshot %q: %w", objectKey, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		// GetObject is lazy; a missing object surfaces on first read.
		var errResp minio.ErrorResponse
		if errors.As(err, &errResp) && errResp.Code == "NoSuchKey" {
			return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("workspace snapshot %q", objectKey))
		}
		return nil, fmt.Errorf("read snapshot %q: %w", objectKey, err)
	}
	return data, nil
}

// Save persists the snapshot bytes under the key's deterministic object key
func (s *SnapshotStore) Save(ctx context.Context, key aggregates.WorkspaceKey, data []byte) error {
	objectKey := key.ObjectKey()

	_, err := s.client.PutObject(ctx, s.bucket, objectKey,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return fmt.Errorf("put snapshot %q: %w", objectKey, err)
	}

	s.logger.Debug("Workspace snapshot saved",
		zap.String("object_key", objectKey),
		zap.Int("bytes", len(data)),
	)
	return nil
}
