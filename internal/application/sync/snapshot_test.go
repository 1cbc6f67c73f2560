package sync

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubReader struct {
	apps []map[string]any
	err  error
}

func (s *stubReader) CanonicalApps(context.Context) ([]map[string]any, error) {
	return s.apps, s.err
}

type storedUpload struct {
	key             string
	body            []byte
	contentType     string
	contentEncoding string
}

type stubStorage struct {
	modified time.Time
	exists   bool
	headErr  error
	uploads  []storedUpload
}

func (s *stubStorage) LastModified(context.Context, string) (time.Time, bool, error) {
	return s.modified, s.exists, s.headErr
}

func (s *stubStorage) Upload(_ context.Context, key string, body []byte, contentType, contentEncoding string) error {
	s.uploads = append(s.uploads, storedUpload{
		key:             key,
		body:            body,
		contentType:     contentType,
		contentEncoding: contentEncoding,
	})
	return nil
}

func TestSnapshotExporter(t *testing.T) {
	t.Run("publishes a gzip JSON artifact", func(t *testing.T) {
		reader := &stubReader{apps: []map[string]any{{"id": int64(10), "title": "Ten"}}}
		storage := &stubStorage{}
		exporter := NewSnapshotExporter(reader, storage, 0, zap.NewNop())

		require.NoError(t, exporter.Export(context.Background()))

		require.Len(t, storage.uploads, 1)
		upload := storage.uploads[0]
		assert.Equal(t, "apps.metadata.json.gz", upload.key)
		assert.Equal(t, "application/json", upload.contentType)
		assert.Equal(t, "gzip", upload.contentEncoding)

		gz, err := gzip.NewReader(bytes.NewReader(upload.body))
		require.NoError(t, err)
		payload, err := io.ReadAll(gz)
		require.NoError(t, err)

		var decoded []map[string]any
		require.NoError(t, json.Unmarshal(payload, &decoded))
		require.Len(t, decoded, 1)
		assert.Equal(t, "Ten", decoded[0]["title"])
	})

	t.Run("a fresh artifact is left alone", func(t *testing.T) {
		storage := &stubStorage{exists: true, modified: time.Now().Add(-time.Hour)}
		exporter := NewSnapshotExporter(&stubReader{}, storage, 24*time.Hour, zap.NewNop())

		require.NoError(t, exporter.Export(context.Background()))
		assert.Empty(t, storage.uploads)
	})

	t.Run("a stale artifact is replaced", func(t *testing.T) {
		storage := &stubStorage{exists: true, modified: time.Now().Add(-25 * time.Hour)}
		exporter := NewSnapshotExporter(&stubReader{}, storage, 24*time.Hour, zap.NewNop())

		require.NoError(t, exporter.Export(context.Background()))
		assert.Len(t, storage.uploads, 1)
	})

	t.Run("an unreadable head is treated as stale", func(t *testing.T) {
		storage := &stubStorage{headErr: errors.New("forbidden")}
		exporter := NewSnapshotExporter(&stubReader{}, storage, 24*time.Hour, zap.NewNop())

		require.NoError(t, exporter.Export(context.Background()))
		assert.Len(t, storage.uploads, 1)
	})

	t.Run("a failed read aborts the export", func(t *testing.T) {
		storage := &stubStorage{}
		exporter := NewSnapshotExporter(&stubReader{err: errors.New("db down")}, storage, 0, zap.NewNop())

		assert.Error(t, exporter.Export(context.Background()))
		assert.Empty(t, storage.uploads)
	})
}
