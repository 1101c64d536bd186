package report

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/user/leadscope/pkg/config"
)

// Mirror copies rendered documents somewhere other than the local output directory.
type Mirror interface {
	Upload(ctx context.Context, scanID, localPath string) (string, error)
}

// S3Store mirrors reports to an S3-compatible bucket.
type S3Store struct {
	mc     *minio.Client
	bucket string
	prefix string
}

// NewS3Store connects to the bucket described by cfg. It does not contact the server.
func NewS3Store(cfg config.ReportConfig) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("report bucket not configured")
	}
	if cfg.S3Endpoint == "" {
		return nil, errors.New("report s3_endpoint not configured")
	}
	mc, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return &S3Store{mc: mc, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Key is the object key a local file is stored under.
func (s *S3Store) Key(scanID, localPath string) string {
	return objectKey(s.prefix, scanID, localPath)
}

func (s *S3Store) Upload(ctx context.Context, scanID, localPath string) (string, error) {
	key := s.Key(scanID, localPath)
	_, err := s.mc.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

func objectKey(prefix, scanID, localPath string) string {
	parts := []string{strings.Trim(prefix, "/")}
	if scanID != "" {
		parts = append(parts, scanID)
	}
	parts = append(parts, filepath.Base(localPath))
	return strings.TrimPrefix(path.Join(parts...), "/")
}
