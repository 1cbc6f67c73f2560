package sync

import (
	"context"

	"github.com/tradeshelf/backend/internal/domain/catalog"
)

// Source names the checkpoint rows. One watermark per source, advanced
// only after a clean run.
const (
	SourceNames     = "app_names_check"
	SourceTypes     = "app_types_check"
	SourceStoreList = "app_list_check"
	SourceChanges   = "change_number"
	SourceCards     = "app_cards_check"
	SourceRemovals  = "app_removals_check"
	SourceBundles   = "deals_bundles_check"
	SourcePrices    = "deals_prices_check"
)

// Upserter is the conflict-aware batched write port backed by the store's
// atomic insert-on-conflict-update primitive.
type Upserter interface {
	Upsert(ctx context.Context, table string, records []catalog.Record, conflictKeys []string) Result
}

// CheckpointStore persists per-source watermarks between runs. A watermark
// is an opaque string: RFC3339 timestamp or a decimal change number,
// depending on the source.
type CheckpointStore interface {
	LastCheck(ctx context.Context, source string) (string, error)
	UpdateLastCheck(ctx context.Context, source, watermark string) error
}

// WorkQueue is the backlog of app identifiers awaiting a full per-entity
// refresh. Enqueue is idempotent; Dequeue removes and returns up to count
// oldest entries and must return an empty slice, never an error, when the
// backing store misbehaves.
type WorkQueue interface {
	Enqueue(ctx context.Context, ids []int64) error
	Dequeue(ctx context.Context, count int) []int64
}
