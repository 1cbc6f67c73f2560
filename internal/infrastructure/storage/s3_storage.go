// Package storage provides the object-storage backend for the published
// catalog snapshot.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	syncapp "github.com/tradeshelf/backend/internal/application/sync"
	infraconfig "github.com/tradeshelf/backend/internal/infrastructure/config"
)

// Ensure S3SnapshotStorage implements the exporter's storage port.
var _ syncapp.SnapshotStorage = (*S3SnapshotStorage)(nil)

// S3SnapshotStorage stores the snapshot artifact in any S3-compatible
// backend (AWS S3, MinIO, RustFS, etc.)
type S3SnapshotStorage struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

// S3SnapshotStorageOption is a functional option for S3SnapshotStorage.
type S3SnapshotStorageOption func(*S3SnapshotStorage)

// WithLogger sets a custom logger for S3SnapshotStorage.
func WithLogger(logger *zap.Logger) S3SnapshotStorageOption {
	return func(s *S3SnapshotStorage) {
		s.logger = logger
	}
}

// NewS3SnapshotStorage creates a snapshot store from configuration.
func NewS3SnapshotStorage(cfg *infraconfig.StorageConfig, opts ...S3SnapshotStorageOption) (*S3SnapshotStorage, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if endpoint != "" {
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	store := &S3SnapshotStorage{
		client: client,
		bucket: cfg.Bucket,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// EnsureBucket creates the bucket if it doesn't exist. Call this during
// application startup.
func (s *S3SnapshotStorage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating storage bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		// A concurrent creator winning the race is fine.
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// LastModified returns the object's last-modified time and whether it
// exists at all.
func (s *S3SnapshotStorage) LastModified(ctx context.Context, key string) (time.Time, bool, error) {
	if key == "" {
		return time.Time{}, false, errors.New("storage key is required")
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return time.Time{}, false, nil
		}
		// Some S3-compatible services report missing keys differently.
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey") {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to check object: %w", err)
	}

	if head.LastModified == nil {
		return time.Time{}, true, nil
	}
	return *head.LastModified, true, nil
}

// Upload writes the object, overwriting any previous version.
func (s *S3SnapshotStorage) Upload(ctx context.Context, key string, body []byte, contentType, contentEncoding string) error {
	if key == "" {
		return errors.New("storage key is required")
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	}
	if contentEncoding != "" {
		input.ContentEncoding = aws.String(contentEncoding)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}

	s.logger.Debug("object uploaded",
		zap.String("key", key),
		zap.Int("bytes", len(body)))
	return nil
}

// GetBucket returns the bucket name
func (s *S3SnapshotStorage) GetBucket() string {
	return s.bucket
}
