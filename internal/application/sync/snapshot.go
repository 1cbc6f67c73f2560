package sync

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// snapshotKey is the object name of the published catalog snapshot.
const snapshotKey = "apps.metadata.json.gz"

// defaultSnapshotMaxAge is how long an existing snapshot stays fresh.
const defaultSnapshotMaxAge = 24 * time.Hour

// MetadataReader supplies the canonical app rows for the snapshot.
type MetadataReader interface {
	CanonicalApps(ctx context.Context) ([]map[string]any, error)
}

// SnapshotStorage is the object store holding the published snapshot.
type SnapshotStorage interface {
	LastModified(ctx context.Context, key string) (time.Time, bool, error)
	Upload(ctx context.Context, key string, body []byte, contentType, contentEncoding string) error
}

// SnapshotExporter publishes the full catalog as a gzip-compressed JSON
// artifact after each sweep. An artifact younger than the freshness
// window is left alone, so back-to-back sweeps do not re-upload.
type SnapshotExporter struct {
	reader  MetadataReader
	storage SnapshotStorage
	logger  *zap.Logger
	now     func() time.Time
	maxAge  time.Duration
}

// NewSnapshotExporter creates a snapshot exporter. maxAge of zero means
// the 24 hour default.
func NewSnapshotExporter(reader MetadataReader, storage SnapshotStorage, maxAge time.Duration, logger *zap.Logger) *SnapshotExporter {
	if maxAge <= 0 {
		maxAge = defaultSnapshotMaxAge
	}
	return &SnapshotExporter{reader: reader, storage: storage, logger: logger, now: time.Now, maxAge: maxAge}
}

// Export publishes a fresh snapshot unless the stored one is recent.
func (e *SnapshotExporter) Export(ctx context.Context) error {
	modified, exists, err := e.storage.LastModified(ctx, snapshotKey)
	if err != nil {
		// Treat an unreadable object as stale and publish anyway.
		e.logger.Warn("snapshot freshness check failed", zap.Error(err))
	} else if exists && e.now().Sub(modified) < e.maxAge {
		e.logger.Debug("snapshot still fresh", zap.Time("modified", modified))
		return nil
	}

	apps, err := e.reader.CanonicalApps(ctx)
	if err != nil {
		return fmt.Errorf("read catalog for snapshot: %w", err)
	}

	payload, err := json.Marshal(apps)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}
	if _, err := gz.Write(payload); err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}

	if err := e.storage.Upload(ctx, snapshotKey, buf.Bytes(), "application/json", "gzip"); err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}

	e.logger.Info("snapshot published",
		zap.Int("apps", len(apps)),
		zap.Int("bytes", buf.Len()))
	return nil
}
