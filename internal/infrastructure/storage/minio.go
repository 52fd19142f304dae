package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/config"
)

// MinioStorage keeps uploads in an S3-compatible bucket
type MinioStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewMinioStorage(ctx context.Context, cfg config.MinioConfig, publicURL string) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}
	return &MinioStorage{client: client, bucket: cfg.Bucket, publicURL: strings.TrimSuffix(publicURL, "/")}, nil
}

func (s *MinioStorage) Save(ctx context.Context, prefix, fileName, contentType string, r io.Reader, size int64) (*domain.StoredObject, error) {
	now := time.Now()
	key := objectName(prefix, fileName, now)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"original-filename": fileName,
			"uploaded-at":       now.Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to minio: %w", err)
	}
	return &domain.StoredObject{Key: key, URL: s.publicURL + "/" + key}, nil
}

func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete from minio: %w", err)
	}
	return nil
}
