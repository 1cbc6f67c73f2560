// Package sync implements the catalog ingestion pipeline: one processor
// per external source, the orchestrator that sequences them, the
// per-entity refresh fan-out, and the snapshot exporter.
package sync

import (
	"context"
	"strconv"
	"time"

	"github.com/tradeshelf/backend/internal/domain/sync"
)

// DeltaProcessor processes everything a source changed since a watermark.
// Process returns the structured result plus the watermark the checkpoint
// should advance to when the run was clean. An empty next watermark means
// the source is not checkpointed.
type DeltaProcessor interface {
	Source() string
	Process(ctx context.Context, lastCheck string) (sync.Result, string)
}

// PullProcessor fetches full detail for an explicit list of entity
// identifiers. One identifier's failure must not fail its siblings.
type PullProcessor interface {
	Name() string
	Process(ctx context.Context, ids []int64) sync.Result
}

// parseTimeWatermark interprets a timestamp watermark. Empty or malformed
// watermarks mean "all time" and return the zero time.
func parseTimeWatermark(watermark string) time.Time {
	if watermark == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, watermark)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseChangeNumber interprets a monotonic-counter watermark; empty or
// malformed means "from the beginning".
func parseChangeNumber(watermark string) int64 {
	if watermark == "" {
		return 0
	}
	n, err := strconv.ParseInt(watermark, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// formatTimeWatermark renders a timestamp watermark.
func formatTimeWatermark(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// chunkIDs splits identifiers into request-sized batches.
func chunkIDs(ids []int64, size int) [][]int64 {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	chunks := make([][]int64, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
