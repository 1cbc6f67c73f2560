package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/tradeshelf/backend/internal/infrastructure/config"
)

// ============================================================================
// Unit Tests (no external dependencies)
// ============================================================================

func TestNewS3SnapshotStorage_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3SnapshotStorage(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		cfg := &config.StorageConfig{
			AccessKey: "test-key",
			SecretKey: "test-secret",
		}
		_, err := NewS3SnapshotStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("missing access key returns error", func(t *testing.T) {
		cfg := &config.StorageConfig{
			Bucket:    "test-bucket",
			SecretKey: "test-secret",
		}
		_, err := NewS3SnapshotStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access key is required")
	})

	t.Run("missing secret key returns error", func(t *testing.T) {
		cfg := &config.StorageConfig{
			Bucket:    "test-bucket",
			AccessKey: "test-key",
		}
		_, err := NewS3SnapshotStorage(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret key is required")
	})

	t.Run("valid config creates storage", func(t *testing.T) {
		cfg := &config.StorageConfig{
			Bucket:       "test-bucket",
			AccessKey:    "test-key",
			SecretKey:    "test-secret",
			Region:       "us-east-1",
			Endpoint:     "http://localhost:9000",
			UsePathStyle: true,
		}
		store, err := NewS3SnapshotStorage(cfg)
		require.NoError(t, err)
		require.NotNil(t, store)
		assert.Equal(t, "test-bucket", store.GetBucket())
	})

	t.Run("adds http prefix when missing and no SSL", func(t *testing.T) {
		cfg := &config.StorageConfig{
			Bucket:    "test-bucket",
			AccessKey: "test-key",
			SecretKey: "test-secret",
			Endpoint:  "localhost:9000",
			UseSSL:    false,
		}
		store, err := NewS3SnapshotStorage(cfg)
		require.NoError(t, err)
		require.NotNil(t, store)
	})

	t.Run("adds https prefix when missing and SSL enabled", func(t *testing.T) {
		cfg := &config.StorageConfig{
			Bucket:    "test-bucket",
			AccessKey: "test-key",
			SecretKey: "test-secret",
			Endpoint:  "localhost:9000",
			UseSSL:    true,
		}
		store, err := NewS3SnapshotStorage(cfg)
		require.NoError(t, err)
		require.NotNil(t, store)
	})

	t.Run("WithLogger sets custom logger", func(t *testing.T) {
		cfg := &config.StorageConfig{
			Bucket:    "test-bucket",
			AccessKey: "test-key",
			SecretKey: "test-secret",
			Endpoint:  "http://localhost:9000",
		}
		store, err := NewS3SnapshotStorage(cfg, WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		assert.NotNil(t, store.logger)
	})
}

func TestS3SnapshotStorage_KeyValidation(t *testing.T) {
	cfg := &config.StorageConfig{
		Bucket:    "test-bucket",
		AccessKey: "test-key",
		SecretKey: "test-secret",
		Endpoint:  "http://localhost:9000",
	}
	store, err := NewS3SnapshotStorage(cfg)
	require.NoError(t, err)

	t.Run("LastModified rejects an empty key", func(t *testing.T) {
		_, _, err := store.LastModified(context.Background(), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage key is required")
	})

	t.Run("Upload rejects an empty key", func(t *testing.T) {
		err := store.Upload(context.Background(), "", []byte("data"), "application/json", "gzip")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage key is required")
	})
}

// ============================================================================
// Integration Tests (require MinIO/RustFS running)
// ============================================================================

// skipIntegration skips the test when no local object store is available.
func skipIntegration(t *testing.T) {
	t.Helper()
	t.Skip("Skipping integration test. Set INTEGRATION_TEST=1 and run MinIO to enable.")
}

func TestIntegration_UploadAndHead(t *testing.T) {
	skipIntegration(t)

	cfg := &config.StorageConfig{
		Bucket:       "test-integration",
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin123",
		Endpoint:     "http://localhost:9000",
		Region:       "us-east-1",
		UsePathStyle: true,
	}
	store, err := NewS3SnapshotStorage(cfg, WithLogger(zap.NewNop()))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.EnsureBucket(ctx))

	key := "integration-test/apps.metadata.json.gz"
	require.NoError(t, store.Upload(ctx, key, []byte("payload"), "application/json", "gzip"))

	modified, exists, err := store.LastModified(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.WithinDuration(t, time.Now(), modified, time.Minute)

	_, exists, err = store.LastModified(ctx, "integration-test/missing")
	require.NoError(t, err)
	assert.False(t, exists)
}
