// Package storage mirrors saved artifacts to S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kiranshivaraju/pixgen/internal/config"
)

var tracer = otel.Tracer("pixgen-storage")

// MinioMirror uploads artifact files into one bucket, keyed by file name.
type MinioMirror struct {
	client *minio.Client
	bucket string

	mu    sync.Mutex
	ready bool // bucket known to exist
}

// NewMinioMirror creates a mirror for cfg. It does not contact the server.
func NewMinioMirror(cfg config.MinioConfig) (*MinioMirror, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &MinioMirror{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (m *MinioMirror) EnsureBucket(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "minio_ensure_bucket")
	defer span.End()
	span.SetAttributes(attribute.String("minio.bucket", m.bucket))

	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

func (m *MinioMirror) ensureOnce(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return nil
	}
	if err := m.EnsureBucket(ctx); err != nil {
		return err
	}
	m.ready = true
	return nil
}

// Mirror uploads the file at path and returns the object URL.
func (m *MinioMirror) Mirror(ctx context.Context, path string) (string, error) {
	key := filepath.Base(path)

	ctx, span := tracer.Start(ctx, "minio_upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("minio.bucket", m.bucket),
		attribute.String("minio.key", key),
	)

	if err := m.ensureOnce(ctx); err != nil {
		return "", err
	}

	info, err := m.client.FPutObject(ctx, m.bucket, key, path, minio.PutObjectOptions{
		ContentType: "image/png",
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to upload to MinIO: %w", err)
	}
	span.SetAttributes(attribute.Int64("minio.size", info.Size))

	u := *m.client.EndpointURL()
	u.Path = "/" + m.bucket + "/" + key
	return u.String(), nil
}
